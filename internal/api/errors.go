package api

import (
	"errors"
	"net/http"

	"github.com/planwise/planwise-api/internal/domain"
	"github.com/planwise/planwise-api/internal/queue"
	"github.com/planwise/planwise-api/internal/service"
	"github.com/planwise/planwise-api/internal/service/auth"
	"github.com/planwise/planwise-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	var validationErr *queue.ValidationError

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	// Not found errors
	case errors.Is(err, store.ErrJobNotFound),
		errors.Is(err, store.ErrTaskNotFound),
		errors.Is(err, store.ErrDeadLetterNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Lifecycle conflicts; duplicate ids surface when the same plan is
	// enqueued twice within one millisecond
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrTaskNotApproved),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Bad request errors
	case errors.As(err, &validationErr),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrEmptyRejectionReason),
		errors.Is(err, domain.ErrEmptyActor),
		errors.Is(err, domain.ErrEmptyAssignee),
		errors.Is(err, domain.ErrNegativeActualHours),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, service.ErrInvalidPlanID):
		return http.StatusBadRequest

	// Shutdown: the queue no longer accepts work
	case errors.Is(err, queue.ErrQueueClosed):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErr *queue.ValidationError

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	// Not found errors
	case errors.Is(err, store.ErrJobNotFound):
		return "Job not found"

	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, store.ErrDeadLetterNotFound):
		return "Dead letter not found"

	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	// Lifecycle conflicts carry their own safe message
	case errors.Is(err, domain.ErrTaskNotApproved):
		return "Task has not been approved for assignment"

	case errors.Is(err, domain.ErrInvalidTransition):
		return "Task status does not allow this operation"

	case errors.Is(err, store.ErrJobExists):
		return "A job for this plan was already enqueued, retry in a moment"

	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"

	// Bad request errors: validation violations are safe to return
	case errors.As(err, &validationErr):
		return validationErr.Error()

	case errors.Is(err, domain.ErrEmptyRejectionReason):
		return "Rejection reason is required"

	case errors.Is(err, domain.ErrEmptyActor):
		return "Actor is required"

	case errors.Is(err, domain.ErrEmptyAssignee):
		return "Assignee is required"

	case errors.Is(err, domain.ErrNegativeActualHours):
		return "Actual hours cannot be negative"

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	case errors.Is(err, service.ErrInvalidPlanID):
		return "Invalid plan ID"

	case errors.Is(err, queue.ErrQueueClosed):
		return "Service is shutting down"

	// Default case for unknown errors
	default:
		return "An unexpected error occurred"
	}
}
