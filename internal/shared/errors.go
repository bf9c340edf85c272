package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates rejected input; see ValidationError for details.
	ErrValidation = errors.New("validation failed")
	// ErrIntegrity indicates a write that would break a structural invariant.
	ErrIntegrity = errors.New("integrity violation")
)

// ValidationError carries per-line messages for a rejected batch. The whole
// batch is rejected; no partial write occurs.
type ValidationError struct {
	Messages []string
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Messages, "; "))
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError from messages.
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Messages: messages}
}

// UserSafeMessage returns a message safe to surface to end users.
func UserSafeMessage(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, ErrNotFound):
		return "requested resource was not found"
	case errors.Is(err, ErrIntegrity):
		return "operation violates data integrity"
	default:
		return "an unexpected error occurred"
	}
}
