package queue

import (
	"fmt"
	"time"
)

// State represents the queue-level state of a job.
type State string

// Possible job states. Delayed is queue-internal: a job waiting out its
// retry backoff before becoming leasable again.
const (
	StateWaiting   State = "waiting"
	StateDelayed   State = "delayed"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Result is the outcome of a successfully executed job.
type Result struct {
	TasksCreated int       `json:"tasksCreated"`
	TaskIDs      []string  `json:"taskIds"`
	CompletedAt  time.Time `json:"completedAt"`
}

// Job is one unit of queued work: create tasks for an approved plan.
// The work queue exclusively owns Job records for their lifetime.
type Job struct {
	ID            string
	Payload       Payload
	State         State
	AttemptsMade  int
	MaxAttempts   int
	Progress      int
	Result        *Result
	FailureReason string
	EnqueuedAt    time.Time
	UpdatedAt     time.Time

	// NextRunAt is when a delayed job becomes leasable again.
	NextRunAt time.Time

	// LockedUntil is the lease expiry of an active job. Nil when the job
	// holds no lease.
	LockedUntil *time.Time
}

// NewJob constructs a job for an already-validated payload. The id is the
// plan identifier suffixed with the enqueue timestamp, so concurrent
// approvals of the same plan produce distinct jobs and a status poller can
// still see which plan a job belongs to.
func NewJob(payload Payload, maxAttempts int) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:          fmt.Sprintf("%s-%d", payload.PlanID, now.UnixMilli()),
		Payload:     payload,
		State:       StateWaiting,
		MaxAttempts: maxAttempts,
		EnqueuedAt:  now,
		UpdatedAt:   now,
		NextRunAt:   now,
	}
}

// JobStatus is the polling view of a job returned to clients.
type JobStatus struct {
	ID          string    `json:"id"`
	Status      State     `json:"status"`
	Progress    int       `json:"progress"`
	Data        Payload   `json:"data"`
	Result      *Result   `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"maxAttempts"`
	CreatedAt   time.Time `json:"createdAt"`
}

// StatusView builds the polling view of the job.
func (j *Job) StatusView() *JobStatus {
	return &JobStatus{
		ID:          j.ID,
		Status:      j.State,
		Progress:    j.Progress,
		Data:        j.Payload,
		Result:      j.Result,
		Error:       j.FailureReason,
		Attempts:    j.AttemptsMade,
		MaxAttempts: j.MaxAttempts,
		CreatedAt:   j.EnqueuedAt,
	}
}
