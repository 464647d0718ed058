// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when a task status change violates
	// the task lifecycle. Wrapped by the transition-specific errors below.
	ErrInvalidTransition = errors.New("invalid task transition")

	// ErrTaskNotApproved is returned when assignment is attempted on a task
	// that has not been approved by an administrator.
	ErrTaskNotApproved = errors.New("task is not approved for assignment")

	// ErrEmptyRejectionReason is returned when a task rejection is attempted
	// without a reason.
	ErrEmptyRejectionReason = errors.New("rejection reason cannot be empty")

	// ErrEmptyActor is returned when a transition that requires a human
	// actor is attempted without one.
	ErrEmptyActor = errors.New("actor cannot be empty")

	// ErrEmptyAssignee is returned when assignment is attempted without an
	// assignee.
	ErrEmptyAssignee = errors.New("assignee cannot be empty")

	// ErrNegativeActualHours is returned when completion reports a negative
	// actual-hours figure.
	ErrNegativeActualHours = errors.New("actual hours cannot be negative")
)

// ValidationError describes a validation failure on a specific field.
// It wraps ErrValidation (or a more specific sentinel) so callers can
// match with errors.Is.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError creates a ValidationError. A nil err defaults to
// ErrValidation.
func NewValidationError(field, message string, err error) *ValidationError {
	if err == nil {
		err = ErrValidation
	}
	return &ValidationError{Field: field, Message: message, Err: err}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap returns the wrapped sentinel to support errors.Is/errors.As.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
