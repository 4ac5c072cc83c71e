package library

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entry doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("duplicate entry")

	// ErrConstraint indicates a foreign key or check constraint violation.
	ErrConstraint = errors.New("constraint violation")

	// ErrUnauthenticated indicates an operation without a user.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrValidation indicates malformed input. Match with errors.Is; the
	// concrete error is a *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrStoreUnavailable indicates the store could not complete a read or write.
	ErrStoreUnavailable = errors.New("library store unavailable")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
