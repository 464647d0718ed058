package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/planwise/planwise-api/internal/events"
	"github.com/planwise/planwise-api/internal/store"
)

// MaxAttemptTimeout caps the per-attempt execution timeout regardless of
// configuration.
const MaxAttemptTimeout = 30 * time.Second

// ErrQueueClosed is returned by operations on a closed queue.
var ErrQueueClosed = errors.New("work queue is closed")

// Config holds work queue behavior settings.
type Config struct {
	// MaxAttempts is the total number of tries a job gets: one initial
	// attempt plus MaxAttempts-1 retries.
	MaxAttempts int

	// BackoffBase is the delay before the first retry; every subsequent
	// retry doubles it.
	BackoffBase time.Duration

	// AttemptTimeout bounds a single execution attempt and doubles as the
	// lease duration. Clamped to MaxAttemptTimeout.
	AttemptTimeout time.Duration

	// CompletedRetention is how long completed jobs are kept before the
	// janitor purges them. Failed jobs are never purged.
	CompletedRetention time.Duration

	// JanitorInterval is how often the janitor purges old completed jobs
	// and recovers expired leases.
	JanitorInterval time.Duration
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:        4,
		BackoffBase:        time.Second,
		AttemptTimeout:     10 * time.Second,
		CompletedRetention: time.Hour,
		JanitorInterval:    30 * time.Second,
	}
}

// withDefaults fills zero values and clamps the attempt timeout.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = def.BackoffBase
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = def.AttemptTimeout
	}
	if c.AttemptTimeout > MaxAttemptTimeout {
		c.AttemptTimeout = MaxAttemptTimeout
	}
	if c.CompletedRetention <= 0 {
		c.CompletedRetention = def.CompletedRetention
	}
	if c.JanitorInterval <= 0 {
		c.JanitorInterval = def.JanitorInterval
	}
	return c
}

// Queue is the durable work queue service. All job mutation goes through
// its narrow operation contract; no component reaches into the stores
// directly.
type Queue struct {
	jobs        JobStore
	deadLetters DeadLetterStore
	publisher   events.Publisher
	cfg         Config
	logger      *slog.Logger

	mu     sync.Mutex
	closed bool

	janitorCancel context.CancelFunc
	wg            sync.WaitGroup
}

// New creates a Queue over the given stores. It verifies the paired
// dead-letter store is reachable up front so a job can never fail into a
// store that does not exist.
func New(
	ctx context.Context,
	jobs JobStore,
	deadLetters DeadLetterStore,
	publisher events.Publisher,
	cfg Config,
	logger *slog.Logger,
) (*Queue, error) {
	if _, err := deadLetters.List(ctx, 1, 0); err != nil {
		return nil, fmt.Errorf("dead-letter store not available: %w", err)
	}

	return &Queue{
		jobs:        jobs,
		deadLetters: deadLetters,
		publisher:   publisher,
		cfg:         cfg.withDefaults(),
		logger:      logger.With("component", "work_queue"),
	}, nil
}

// Config returns the effective queue configuration.
func (q *Queue) Config() Config {
	return q.cfg
}

// Enqueue validates the payload and persists a new waiting job.
// Invalid payloads never enter the queue: the returned error is a
// *ValidationError and no job record exists afterwards.
func (q *Queue) Enqueue(ctx context.Context, payload Payload) (string, error) {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return "", ErrQueueClosed
	}

	if err := ValidatePayload(&payload); err != nil {
		return "", err
	}

	job := NewJob(payload, q.cfg.MaxAttempts)
	if err := q.jobs.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("failed to persist job: %w", err)
	}

	q.logger.Info("job enqueued",
		"job_id", job.ID,
		"plan_id", payload.PlanID,
		"opportunities", len(payload.Opportunities))

	q.emit(ctx, events.NewJobEvent(events.KindEnqueued, job.ID, payload.PlanID))

	return job.ID, nil
}

// GetStatus returns the polling view of a job, or (nil, nil) when the id
// is unknown. Callers must treat a nil status as a miss, not an error.
func (q *Queue) GetStatus(ctx context.Context, id string) (*JobStatus, error) {
	job, err := q.jobs.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load job status: %w", err)
	}

	return job.StatusView(), nil
}

// Lease claims the next due job for execution. The lease duration equals
// the attempt timeout. Returns ErrNoJobAvailable when nothing is due.
func (q *Queue) Lease(ctx context.Context) (*Job, error) {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return nil, ErrQueueClosed
	}

	now := time.Now().UTC()
	job, err := q.jobs.LeaseNextJob(ctx, now, now.Add(q.cfg.AttemptTimeout))
	if err != nil {
		return nil, err
	}

	event := events.NewJobEvent(events.KindActive, job.ID, job.Payload.PlanID)
	event.Attempt = job.AttemptsMade
	q.emit(ctx, event)

	return job, nil
}

// RenewLease extends the lease of an active job by one attempt timeout.
// Workers call this at the lease's half-life so a healthy attempt is never
// stolen by stale-lock recovery.
func (q *Queue) RenewLease(ctx context.Context, job *Job) error {
	until := time.Now().UTC().Add(q.cfg.AttemptTimeout)
	if err := q.jobs.RenewLease(ctx, job.ID, until); err != nil {
		return fmt.Errorf("failed to renew lease: %w", err)
	}
	job.LockedUntil = &until
	return nil
}

// ReportProgress records job progress. Progress is monotonically
// non-decreasing within an attempt; stale reports are ignored.
func (q *Queue) ReportProgress(ctx context.Context, job *Job, progress int) error {
	if progress <= job.Progress {
		return nil
	}

	if err := q.jobs.UpdateProgress(ctx, job.ID, progress); err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	job.Progress = progress

	event := events.NewJobEvent(events.KindProgress, job.ID, job.Payload.PlanID)
	event.Attempt = job.AttemptsMade
	event.Progress = progress
	q.emit(ctx, event)

	return nil
}

// ResolveCompleted marks a leased job as successfully completed.
func (q *Queue) ResolveCompleted(ctx context.Context, job *Job, result *Result) error {
	if result.CompletedAt.IsZero() {
		result.CompletedAt = time.Now().UTC()
	}

	if err := q.jobs.MarkCompleted(ctx, job.ID, result); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	job.State = StateCompleted
	job.Progress = 100
	job.Result = result

	q.logger.Info("job completed",
		"job_id", job.ID,
		"plan_id", job.Payload.PlanID,
		"attempts", job.AttemptsMade,
		"tasks_created", result.TasksCreated)

	event := events.NewJobEvent(events.KindCompleted, job.ID, job.Payload.PlanID)
	event.Attempt = job.AttemptsMade
	event.Result = result
	q.emit(ctx, event)

	return nil
}

// ResolveFailed records a failed attempt. The job is re-delayed with
// exponential backoff unless its attempts are exhausted, in which case it
// is dead-lettered and marked terminally failed.
func (q *Queue) ResolveFailed(ctx context.Context, job *Job, reason string) error {
	if job.AttemptsMade >= job.MaxAttempts {
		return q.deadLetter(ctx, job, reason)
	}

	delay := q.Backoff(job.AttemptsMade)
	nextRun := time.Now().UTC().Add(delay)

	if err := q.jobs.MarkDelayed(ctx, job.ID, nextRun, reason); err != nil {
		return fmt.Errorf("failed to delay job for retry: %w", err)
	}
	job.State = StateDelayed
	job.NextRunAt = nextRun
	job.FailureReason = reason

	q.logger.Warn("job attempt failed, retrying",
		"job_id", job.ID,
		"plan_id", job.Payload.PlanID,
		"attempt", job.AttemptsMade,
		"max_attempts", job.MaxAttempts,
		"retry_in", delay,
		"reason", reason)

	event := events.NewJobEvent(events.KindRetrying, job.ID, job.Payload.PlanID)
	event.Attempt = job.AttemptsMade
	event.Error = reason
	q.emit(ctx, event)

	return nil
}

// deadLetter moves an exhausted job into the dead-letter store and marks
// it terminally failed. The dead letter is written first: a crash between
// the two writes leaves the job recoverable rather than lost.
func (q *Queue) deadLetter(ctx context.Context, job *Job, reason string) error {
	if err := q.deadLetters.Add(ctx, job, reason); err != nil {
		return fmt.Errorf("failed to dead-letter job: %w", err)
	}

	if err := q.jobs.MarkFailed(ctx, job.ID, reason); err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	job.State = StateFailed
	job.FailureReason = reason

	q.logger.Error("job exhausted all attempts, dead-lettered",
		"job_id", job.ID,
		"plan_id", job.Payload.PlanID,
		"attempts", job.AttemptsMade,
		"reason", reason)

	event := events.NewJobEvent(events.KindFailed, job.ID, job.Payload.PlanID)
	event.Attempt = job.AttemptsMade
	event.Error = reason
	q.emit(ctx, event)

	return nil
}

// Backoff returns the retry delay after the given attempt number:
// base, 2*base, 4*base, doubling with each attempt.
func (q *Queue) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return q.cfg.BackoffBase * (1 << (attempt - 1))
}

// ListDeadLetters returns dead-lettered jobs for operator tooling.
func (q *Queue) ListDeadLetters(ctx context.Context, limit, offset int) ([]*DeadLetter, error) {
	return q.deadLetters.List(ctx, limit, offset)
}

// GetDeadLetter returns one dead-lettered job by its original job id.
func (q *Queue) GetDeadLetter(ctx context.Context, jobID string) (*DeadLetter, error) {
	return q.deadLetters.Get(ctx, jobID)
}

// ReplayDeadLetter re-enqueues a dead-lettered payload as a fresh job with
// a new id and marks the entry replayed. This is the only path out of the
// dead-letter store.
func (q *Queue) ReplayDeadLetter(ctx context.Context, jobID string) (string, error) {
	dl, err := q.deadLetters.Get(ctx, jobID)
	if err != nil {
		return "", err
	}

	newID, err := q.Enqueue(ctx, dl.Payload)
	if err != nil {
		return "", fmt.Errorf("failed to re-enqueue dead letter: %w", err)
	}

	if err := q.deadLetters.MarkReplayed(ctx, jobID, time.Now().UTC()); err != nil {
		// The new job is already queued; surface the bookkeeping failure.
		return newID, fmt.Errorf("job %s re-enqueued but could not mark dead letter replayed: %w", newID, err)
	}

	q.logger.Info("dead letter replayed",
		"dead_letter_job_id", jobID,
		"new_job_id", newID)

	return newID, nil
}

// StartJanitor launches the background loop that purges old completed
// jobs and recovers jobs whose lease expired.
func (q *Queue) StartJanitor() {
	ctx, cancel := context.WithCancel(context.Background())
	q.janitorCancel = cancel

	q.wg.Add(1)
	go q.janitor(ctx)
}

// Close stops the janitor and marks the queue closed. Subsequent Enqueue
// and Lease calls fail fast with ErrQueueClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	if q.janitorCancel != nil {
		q.janitorCancel()
	}
	q.wg.Wait()

	q.logger.Info("work queue closed")
}

// janitor periodically purges completed jobs past their retention age and
// resolves expired leases as failed attempts.
func (q *Queue) janitor(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.cfg.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.sweep(ctx)
		}
	}
}

// sweep performs one janitor pass.
func (q *Queue) sweep(ctx context.Context) {
	now := time.Now().UTC()

	purged, err := q.jobs.PurgeCompletedBefore(ctx, now.Add(-q.cfg.CompletedRetention))
	if err != nil {
		q.logger.Error("failed to purge completed jobs", "error", err)
	} else if purged > 0 {
		q.logger.Info("purged completed jobs", "count", purged)
	}

	expired, err := q.jobs.ListExpiredLeases(ctx, now)
	if err != nil {
		q.logger.Error("failed to list expired leases", "error", err)
		return
	}

	for _, job := range expired {
		q.logger.Warn("recovering job with expired lease",
			"job_id", job.ID,
			"attempt", job.AttemptsMade)
		if err := q.ResolveFailed(ctx, job, "attempt timed out: lease expired"); err != nil {
			q.logger.Error("failed to recover expired lease",
				"job_id", job.ID,
				"error", err)
		}
	}
}

// emit publishes a lifecycle event when a publisher is configured.
func (q *Queue) emit(ctx context.Context, event events.JobEvent) {
	if q.publisher != nil {
		q.publisher.Publish(ctx, event)
	}
}
