package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/planwise/planwise-api/internal/queue"
)

// ProgressFunc reports attempt progress as a percentage. Reports are
// best effort: a failed progress write never fails the attempt.
type ProgressFunc func(progress int)

// TaskCreator executes the work a leased job describes. An
// implementation must respect ctx cancellation: when the attempt
// timeout fires, ctx is done and the creator should return promptly.
type TaskCreator interface {
	CreateTasks(ctx context.Context, job *queue.Job, report ProgressFunc) (*queue.Result, error)
}

// Config holds worker behavior settings.
type Config struct {
	// Concurrency is the number of jobs processed simultaneously.
	Concurrency int

	// PollInterval is how long a worker sleeps when the queue is empty.
	PollInterval time.Duration

	// DrainTimeout bounds how long Stop waits for in-flight attempts
	// before cancelling them.
	DrainTimeout time.Duration
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:  1,
		PollInterval: 500 * time.Millisecond,
		DrainTimeout: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = def.DrainTimeout
	}
	return c
}

// Worker drives job execution: it leases due jobs from the queue, runs
// the task creator against each, and resolves the outcome.
type Worker struct {
	queue   *queue.Queue
	creator TaskCreator
	cfg     Config
	logger  *slog.Logger

	// pollCtx stops the poll loops; attemptCtx force-cancels in-flight
	// attempts once the drain window closes.
	pollCtx       context.Context
	pollCancel    context.CancelFunc
	attemptCtx    context.Context
	attemptCancel context.CancelFunc

	wg         sync.WaitGroup
	errHandler func(jobID string, err error)
}

// New creates a Worker over the given queue and task creator.
func New(q *queue.Queue, creator TaskCreator, cfg Config, logger *slog.Logger) *Worker {
	pollCtx, pollCancel := context.WithCancel(context.Background())
	attemptCtx, attemptCancel := context.WithCancel(context.Background())

	w := &Worker{
		queue:         q,
		creator:       creator,
		cfg:           cfg.withDefaults(),
		logger:        logger.With("component", "worker"),
		pollCtx:       pollCtx,
		pollCancel:    pollCancel,
		attemptCtx:    attemptCtx,
		attemptCancel: attemptCancel,
	}
	w.errHandler = func(jobID string, err error) {
		w.logger.Error("failed to resolve job outcome",
			"job_id", jobID,
			"error", err)
	}
	return w
}

// SetErrorHandler installs a custom handler for resolution failures,
// which indicate the job store is unreachable and deserve alerting.
func (w *Worker) SetErrorHandler(handler func(jobID string, err error)) {
	w.errHandler = handler
}

// Start launches the poll loops.
func (w *Worker) Start() {
	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go w.pollLoop(i)
	}
	w.logger.Info("worker started",
		"concurrency", w.cfg.Concurrency,
		"poll_interval", w.cfg.PollInterval)
}

// Stop shuts the worker down. New leases stop immediately; in-flight
// attempts get the drain window to finish, then their contexts are
// cancelled and each attempt resolves as a failure.
func (w *Worker) Stop() {
	w.pollCancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.cfg.DrainTimeout):
		w.logger.Warn("drain timeout exceeded, cancelling in-flight attempts",
			"drain_timeout", w.cfg.DrainTimeout)
		w.attemptCancel()
		<-done
	}

	w.attemptCancel()
	w.logger.Info("worker stopped")
}

// pollLoop leases and processes jobs until the worker stops. When the
// queue is empty it sleeps for the poll interval.
func (w *Worker) pollLoop(id int) {
	defer w.wg.Done()

	logger := w.logger.With("poller_id", id)
	logger.Debug("starting poll loop")

	for {
		select {
		case <-w.pollCtx.Done():
			logger.Debug("stopping poll loop")
			return
		default:
		}

		job, err := w.queue.Lease(w.pollCtx)
		switch {
		case err == nil:
			w.process(job)
			continue
		case errors.Is(err, queue.ErrNoJobAvailable):
			// Nothing due; fall through to the poll sleep.
		case errors.Is(err, queue.ErrQueueClosed):
			logger.Debug("queue closed, stopping poll loop")
			return
		default:
			logger.Error("failed to lease job", "error", err)
			w.errHandler("", err)
		}

		select {
		case <-w.pollCtx.Done():
			logger.Debug("stopping poll loop")
			return
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

// process runs one attempt of a leased job and resolves its outcome.
func (w *Worker) process(job *queue.Job) {
	timeout := w.queue.Config().AttemptTimeout

	ctx, cancel := context.WithTimeout(w.attemptCtx, timeout)
	defer cancel()

	logger := w.logger.With(
		"job_id", job.ID,
		"plan_id", job.Payload.PlanID,
		"attempt", job.AttemptsMade,
	)
	logger.Info("processing job")

	// Renew the lease at its half-life so a healthy attempt is never
	// reclaimed by stale-lock recovery.
	renewDone := make(chan struct{})
	go w.renewLease(ctx, job, timeout/2, renewDone)

	report := func(progress int) {
		if err := w.queue.ReportProgress(ctx, job, progress); err != nil {
			logger.Warn("failed to report progress",
				"progress", progress,
				"error", err)
		}
	}

	result, err := w.creator.CreateTasks(ctx, job, report)
	cancel()
	<-renewDone

	// Resolution uses a fresh context: the outcome must reach the store
	// even when the attempt context is already dead.
	resolveCtx, resolveCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer resolveCancel()

	if err != nil {
		reason := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "attempt timed out after " + timeout.String()
		}
		logger.Warn("job attempt failed", "reason", reason)
		if resolveErr := w.queue.ResolveFailed(resolveCtx, job, reason); resolveErr != nil {
			w.errHandler(job.ID, resolveErr)
		}
		return
	}

	if resolveErr := w.queue.ResolveCompleted(resolveCtx, job, result); resolveErr != nil {
		w.errHandler(job.ID, resolveErr)
	}
}

// renewLease extends the job's lease every interval until the attempt
// context ends.
func (w *Worker) renewLease(ctx context.Context, job *queue.Job, interval time.Duration, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.queue.RenewLease(ctx, job); err != nil {
				w.logger.Warn("failed to renew lease",
					"job_id", job.ID,
					"error", err)
			}
		}
	}
}
