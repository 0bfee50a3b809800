// Package dberr maps storage driver errors onto the three failure kinds the
// interaction paths care about. Callers above the repository layer switch on
// Kind and never inspect driver error types or SQLSTATE codes themselves.
package dberr

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Kind is the classification of a storage error.
type Kind int

const (
	// Unclassified covers nil and every error the engine has no special
	// handling for; such errors propagate to the caller unchanged.
	Unclassified Kind = iota
	// UniqueViolation: an insert lost a race against an identical row.
	UniqueViolation
	// RecordNotFound: a lookup or delete targeted a row that is gone.
	RecordNotFound
	// ForeignKeyViolation: a referenced row (usually the target) is gone.
	ForeignKeyViolation
)

func (k Kind) String() string {
	switch k {
	case UniqueViolation:
		return "unique_violation"
	case RecordNotFound:
		return "record_not_found"
	case ForeignKeyViolation:
		return "foreign_key_violation"
	}
	return "unclassified"
}

// Postgres SQLSTATE codes for the two constraint classes the engine absorbs
// or remaps. Gorm translates these when TranslateError is on; the raw codes
// are still matched for Exec paths that bypass translation.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Classify returns the Kind for err, unwrapping as needed. A nil error is
// Unclassified.
func Classify(err error) Kind {
	if err == nil {
		return Unclassified
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, sql.ErrNoRows):
		return RecordNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return UniqueViolation
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ForeignKeyViolation
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return UniqueViolation
		case pgForeignKeyViolation:
			return ForeignKeyViolation
		}
	}
	return Unclassified
}

// IsUniqueViolation reports whether err is a duplicate-key failure.
func IsUniqueViolation(err error) bool { return Classify(err) == UniqueViolation }

// IsRecordNotFound reports whether err is a missing-row failure.
func IsRecordNotFound(err error) bool { return Classify(err) == RecordNotFound }

// IsForeignKeyViolation reports whether err is a broken-reference failure.
func IsForeignKeyViolation(err error) bool { return Classify(err) == ForeignKeyViolation }
