package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the target row does not exist or is soft-deleted.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness or state violation.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates caller-supplied input violates a constraint.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials indicates login failure. Deliberately carries no
	// detail about which half of the credential was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrStoreUnavailable indicates the persistence collaborator could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrOperationInFlight indicates a second login/logout overlapped an active one.
	ErrOperationInFlight = errors.New("operation already in flight")
)

// Validationf wraps ErrValidation with a human-readable reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// Conflictf wraps ErrConflict with a human-readable reason.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConflict}, args...)...)
}
