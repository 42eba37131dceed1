package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds for input validation. These allow errors.Is from callers.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrDuplicateTitle = fmt.Errorf("%w: duplicate candidate title", ErrInvalidInput)
	ErrNonFinite      = fmt.Errorf("%w: non-finite rating", ErrInvalidInput)
)

// ValidationError collects every problem found while validating one entity.
// It unwraps to Kind, which always chains to ErrInvalidInput.
type ValidationError struct {
	Entity string
	Errors []string
	Kind   error
}

// NewValidationError creates an empty ValidationError for entity.
func NewValidationError(entity string, kind error) *ValidationError {
	if kind == nil {
		kind = ErrInvalidInput
	}
	return &ValidationError{Entity: entity, Kind: kind}
}

// Error implements error.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: [%s]", e.Entity, strings.Join(e.Errors, "; "))
}

// Unwrap returns the error kind.
func (e *ValidationError) Unwrap() error { return e.Kind }

// AddError appends a message.
func (e *ValidationError) AddError(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

// HasErrors reports whether any message was added.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// IsValidation reports whether err is an input-validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrInvalidInput) }
