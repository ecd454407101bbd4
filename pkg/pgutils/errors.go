// Package pgutils classifies PostgreSQL errors so repositories can map
// constraint violations onto domain errors.
package pgutils

import (
	"errors"
	"strings"

	"github.com/uptrace/bun/driver/pgdriver"
)

// SQLSTATE class 23 (integrity constraint violation) codes.
// See https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
)

// IsUniqueViolation reports whether err is a unique constraint
// violation (23505).
func IsUniqueViolation(err error) bool {
	return hasCode(err, CodeUniqueViolation)
}

// IsForeignKeyViolation reports whether err is a foreign key violation
// (23503). Edge inserts hit this when an endpoint node does not exist.
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, CodeForeignKeyViolation)
}

// hasCode checks the structured pgdriver error first and falls back to
// message matching for errors wrapped by layers that drop the type.
func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == code
	}

	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE "+code) || strings.Contains(msg, code)
}
