// Package servicecore holds the error taxonomy shared by all services.
// Handlers map these onto HTTP status codes.
package servicecore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers unknown devices, scans and commands.
	ErrNotFound = errors.New("not found")

	// ErrConflict signals a write that lost against a concurrent one.
	ErrConflict = errors.New("conflict")

	// ErrInvalidCredentials covers bad admin logins and bad device keys.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError names the offending field (or record index) so automated
// callers can correct their payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
