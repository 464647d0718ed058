package queue

import (
	"context"
	"errors"
	"time"
)

// ErrNoJobAvailable is returned by LeaseNextJob when no job is due.
var ErrNoJobAvailable = errors.New("no job available")

// JobStore defines the interface for persisting jobs.
// Implementations must make LeaseNextJob safe under concurrent callers:
// a job may be held by at most one lease at a time.
type JobStore interface {
	// CreateJob persists a new job.
	// Returns store.ErrJobExists if the id is already taken.
	CreateJob(ctx context.Context, job *Job) error

	// GetJob retrieves a job by id.
	// Returns store.ErrJobNotFound if the job does not exist.
	GetJob(ctx context.Context, id string) (*Job, error)

	// LeaseNextJob atomically claims the oldest due job (waiting, or
	// delayed with next_run_at <= now), marks it active, increments its
	// attempt counter, resets its progress and sets the lease expiry.
	// Returns the claimed job or ErrNoJobAvailable.
	LeaseNextJob(ctx context.Context, now, leaseUntil time.Time) (*Job, error)

	// RenewLease extends the lease expiry of an active job.
	// Returns store.ErrJobNotFound if the job is not active anymore.
	RenewLease(ctx context.Context, id string, leaseUntil time.Time) error

	// UpdateProgress records the progress of an active job.
	UpdateProgress(ctx context.Context, id string, progress int) error

	// MarkCompleted resolves a job as completed with its result and
	// releases the lease. Progress is set to 100.
	MarkCompleted(ctx context.Context, id string, result *Result) error

	// MarkFailed resolves a job as terminally failed and releases the lease.
	MarkFailed(ctx context.Context, id string, reason string) error

	// MarkDelayed returns a job to the delayed state for a later retry
	// and releases the lease.
	MarkDelayed(ctx context.Context, id string, nextRunAt time.Time, reason string) error

	// ListExpiredLeases returns active jobs whose lease expired before now.
	ListExpiredLeases(ctx context.Context, now time.Time) ([]*Job, error)

	// PurgeCompletedBefore deletes completed jobs that finished before the
	// cutoff and returns how many were removed. Failed jobs are never
	// purged.
	PurgeCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DeadLetter is a job that exhausted all retries, retained for manual
// inspection and replay.
type DeadLetter struct {
	JobID          string     `json:"job_id"`
	Payload        Payload    `json:"payload"`
	FailureReason  string     `json:"failure_reason"`
	AttemptsMade   int        `json:"attempts_made"`
	DeadLetteredAt time.Time  `json:"dead_lettered_at"`
	ReplayedAt     *time.Time `json:"replayed_at,omitempty"`
}

// DeadLetterStore defines the interface for the dead-letter side of the
// queue. Entries are only ever added by the queue and replayed by a
// deliberate administrative action; there is no automatic retry out of
// this store.
type DeadLetterStore interface {
	// Add records a dead-lettered job.
	Add(ctx context.Context, job *Job, reason string) error

	// Get retrieves a dead letter by the original job id.
	// Returns store.ErrDeadLetterNotFound if it does not exist.
	Get(ctx context.Context, jobID string) (*DeadLetter, error)

	// List returns dead letters ordered by dead-letter time, newest first.
	List(ctx context.Context, limit, offset int) ([]*DeadLetter, error)

	// MarkReplayed records that an operator re-enqueued this entry.
	MarkReplayed(ctx context.Context, jobID string, at time.Time) error
}
