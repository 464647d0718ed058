package events

import (
	"context"
	"time"
)

// Kind identifies a job lifecycle transition. The set is closed: consumers
// switch over these constants instead of matching on free-form strings.
type Kind string

// Possible event kinds, one per queue lifecycle transition.
const (
	KindEnqueued  Kind = "enqueued"
	KindActive    Kind = "active"
	KindProgress  Kind = "progress"
	KindCompleted Kind = "completed"
	KindFailed    Kind = "failed"
	KindRetrying  Kind = "retrying"
)

// Valid reports whether k is one of the defined event kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindEnqueued, KindActive, KindProgress, KindCompleted, KindFailed, KindRetrying:
		return true
	default:
		return false
	}
}

// Terminal reports whether k describes a terminal job resolution.
// Only terminal events are forwarded to the webhook notifier.
func (k Kind) Terminal() bool {
	return k == KindCompleted || k == KindFailed
}

// JobEvent is the typed payload published for every job lifecycle
// transition.
type JobEvent struct {
	Kind      Kind      `json:"kind"`
	JobID     string    `json:"job_id"`
	PlanID    string    `json:"plan_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Attempt is the attempt number this event belongs to, 1-based.
	// Zero for enqueued events.
	Attempt int `json:"attempt,omitempty"`

	// Progress is set on progress events, 0-100.
	Progress int `json:"progress,omitempty"`

	// Result carries the job result on completed events.
	Result any `json:"result,omitempty"`

	// Error carries the failure reason on failed and retrying events.
	Error string `json:"error,omitempty"`
}

// NewJobEvent creates a JobEvent of the given kind with the timestamp set.
func NewJobEvent(kind Kind, jobID, planID string) JobEvent {
	return JobEvent{
		Kind:      kind,
		JobID:     jobID,
		PlanID:    planID,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher is implemented by components that accept job lifecycle events.
// Publish must not block the caller on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, event JobEvent)
}

// Notifier delivers terminal job events to an external receiver.
// Implementations are best-effort: a delivery failure is logged by the
// caller and never retried.
type Notifier interface {
	Notify(ctx context.Context, event JobEvent) error
}
