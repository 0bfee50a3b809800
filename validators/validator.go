package validators

import "github.com/go-playground/validator/v10"

// Validator adapts go-playground/validator to Echo's Validator interface so
// handlers can call c.Validate on bound request structs.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates the shared request validator
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate implements echo.Validator
func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}
