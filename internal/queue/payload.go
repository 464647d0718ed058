package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance for payload checks.
var validate = validator.New()

// Opportunity is one marketplace opportunity from an approved analysis plan.
type Opportunity struct {
	ID          string `json:"id"          validate:"required"`
	Title       string `json:"title"       validate:"required"`
	Phase       string `json:"phase"       validate:"required,oneof=1 2 3"`
	Description string `json:"description,omitempty"`
}

// Metadata carries approval bookkeeping attached to a job payload.
type Metadata struct {
	CreatedBy  string     `json:"createdBy" validate:"required"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// Payload is the validated body of a task-creation job. PlanID stays a
// string at this boundary so a malformed UUID surfaces as a validation
// violation instead of a decode error.
type Payload struct {
	PlanID        string        `json:"planId"        validate:"required,uuid"`
	Channels      []string      `json:"channels"      validate:"required,min=1,dive,required"`
	Opportunities []Opportunity `json:"opportunities" validate:"dive"`
	Metadata      Metadata      `json:"metadata"`
}

// ValidationError reports every schema violation found in a payload.
// Callers must not enqueue a payload that produced one.
type ValidationError struct {
	Violations []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "payload validation failed: " + strings.Join(e.Violations, "; ")
}

// ValidatePayload checks the payload against the job schema and returns a
// *ValidationError enumerating all violations, or nil when the payload is
// valid.
func ValidatePayload(payload *Payload) error {
	if payload == nil {
		return &ValidationError{Violations: []string{"payload is required"}}
	}

	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// validator.Struct only returns this for unsupported input types,
		// which a *Payload never is.
		return &ValidationError{Violations: []string{err.Error()}}
	}

	violations := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, describeViolation(fe))
	}

	return &ValidationError{Violations: violations}
}

// describeViolation converts one validator field error into a
// human-readable violation message.
func describeViolation(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Payload.")

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "min":
		return fmt.Sprintf("%s must contain at least %s element(s)", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation on %q", field, fe.Tag())
	}
}
