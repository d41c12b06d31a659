package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound          = errors.New("resource not found")
	ErrUnauthorized      = errors.New("unauthorized access")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrSchemaConfig      = errors.New("schema configuration error")
	ErrTransactionFailed = errors.New("transaction failed")
	ErrInternal          = errors.New("internal server error")
)

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsDomain reports whether err carries one of the caller-facing sentinels
// (as opposed to a raw driver or network failure).
func IsDomain(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrUnauthorized, ErrForbidden, ErrInvalidInput,
		ErrConflict, ErrInvalidTransition, ErrSchemaConfig,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
