package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string    `json:"name"`
	Email       string    `json:"email" gorm:"uniqueIndex"` // Ensure email is unique across all users
	Bio         string    `json:"bio,omitempty"`
	AvatarPath  string    `json:"avatar_path,omitempty"` // Object path in the media bucket, signed at response time
	Password    string    `json:"-"`                     // Store hashed password, ignore for JSON serialization
	IsAdmin     bool      `json:"is_admin" gorm:"default:false"`
	FirebaseUID *string   `json:"firebase_uid,omitempty" gorm:"uniqueIndex"` // Link to Firebase User UID, nil for local accounts
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// UserSummary is the compact author shape embedded in post, activity and
// comment responses. AvatarURL is already signed.
type UserSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type CreateUserRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=50"`
	Email       string `json:"email" validate:"required,email"`
	FirebaseUID string `json:"firebase_uid" validate:"required"` // Firebase UID will be provided by the client after Firebase Auth
}

type CreateLocalUserRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type UpdateUserRequest struct {
	Name       string `json:"name,omitempty" validate:"omitempty,min=2,max=50"`
	Bio        string `json:"bio,omitempty" validate:"omitempty,max=300"`
	AvatarPath string `json:"avatar_path,omitempty" validate:"omitempty,max=512"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}
