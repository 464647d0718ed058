package queue_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwise/planwise-api/internal/events"
	"github.com/planwise/planwise-api/internal/platform/logger"
	"github.com/planwise/planwise-api/internal/queue"
	"github.com/planwise/planwise-api/internal/queue/queuetest"
)

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	mu     sync.Mutex
	events []events.JobEvent
}

func (p *capturingPublisher) Publish(ctx context.Context, event events.JobEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturingPublisher) kinds() []events.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]events.Kind, len(p.events))
	for i, e := range p.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&logger.TestLogBuffer{}, nil))
}

type queueFixture struct {
	queue       *queue.Queue
	jobs        *queuetest.JobStore
	deadLetters *queuetest.DeadLetterStore
	published   *capturingPublisher
}

func newQueueFixture(t *testing.T, cfg queue.Config) *queueFixture {
	t.Helper()

	jobs := queuetest.NewJobStore()
	deadLetters := queuetest.NewDeadLetterStore()
	published := &capturingPublisher{}

	q, err := queue.New(context.Background(), jobs, deadLetters, published, cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(q.Close)

	return &queueFixture{queue: q, jobs: jobs, deadLetters: deadLetters, published: published}
}

func TestEnqueueValidPayload(t *testing.T) {
	f := newQueueFixture(t, queue.DefaultConfig())

	jobID, err := f.queue.Enqueue(context.Background(), validPayload())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(jobID, validPlanID+"-"))

	status, err := f.queue.GetStatus(context.Background(), jobID)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, queue.StateWaiting, status.Status)
	assert.Equal(t, 0, status.Attempts)
	assert.Equal(t, 4, status.MaxAttempts)
	assert.Equal(t, validPlanID, status.Data.PlanID)

	assert.Equal(t, []events.Kind{events.KindEnqueued}, f.published.kinds())
}

func TestEnqueueInvalidPayloadNeverPersists(t *testing.T) {
	f := newQueueFixture(t, queue.DefaultConfig())

	payload := validPayload()
	payload.Channels = nil

	_, err := f.queue.Enqueue(context.Background(), payload)
	require.Error(t, err)

	var vErr *queue.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, 0, f.jobs.Len())
	assert.Empty(t, f.published.kinds())
}

func TestGetStatusUnknownIDReturnsNil(t *testing.T) {
	f := newQueueFixture(t, queue.DefaultConfig())

	status, err := f.queue.GetStatus(context.Background(), "missing-id")
	require.NoError(t, err)
	assert.Nil(t, status)
}

func TestEnqueueOnClosedQueueFailsFast(t *testing.T) {
	f := newQueueFixture(t, queue.DefaultConfig())

	f.queue.Close()

	_, err := f.queue.Enqueue(context.Background(), validPayload())
	assert.ErrorIs(t, err, queue.ErrQueueClosed)

	_, err = f.queue.Lease(context.Background())
	assert.ErrorIs(t, err, queue.ErrQueueClosed)
}

func TestBackoffSequence(t *testing.T) {
	f := newQueueFixture(t, queue.DefaultConfig())

	assert.Equal(t, time.Second, f.queue.Backoff(1))
	assert.Equal(t, 2*time.Second, f.queue.Backoff(2))
	assert.Equal(t, 4*time.Second, f.queue.Backoff(3))
}

func TestLeaseClaimsOldestDueJob(t *testing.T) {
	f := newQueueFixture(t, queue.DefaultConfig())

	jobID, err := f.queue.Enqueue(context.Background(), validPayload())
	require.NoError(t, err)

	job, err := f.queue.Lease(context.Background())
	require.NoError(t, err)
	assert.Equal(t, jobID, job.ID)
	assert.Equal(t, queue.StateActive, job.State)
	assert.Equal(t, 1, job.AttemptsMade)
	require.NotNil(t, job.LockedUntil)

	// The one job is leased; nothing else is due.
	_, err = f.queue.Lease(context.Background())
	assert.ErrorIs(t, err, queue.ErrNoJobAvailable)
}

func TestReportProgressIsMonotonic(t *testing.T) {
	f := newQueueFixture(t, queue.DefaultConfig())

	_, err := f.queue.Enqueue(context.Background(), validPayload())
	require.NoError(t, err)

	job, err := f.queue.Lease(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.queue.ReportProgress(context.Background(), job, 30))
	assert.Equal(t, 30, job.Progress)

	// A stale lower report is ignored without error.
	require.NoError(t, f.queue.ReportProgress(context.Background(), job, 10))
	assert.Equal(t, 30, job.Progress)

	status, err := f.queue.GetStatus(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, status.Progress)
}

func TestResolveCompleted(t *testing.T) {
	f := newQueueFixture(t, queue.DefaultConfig())

	jobID, err := f.queue.Enqueue(context.Background(), validPayload())
	require.NoError(t, err)

	job, err := f.queue.Lease(context.Background())
	require.NoError(t, err)

	result := &queue.Result{TasksCreated: 2, TaskIDs: []string{"t1", "t2"}}
	require.NoError(t, f.queue.ResolveCompleted(context.Background(), job, result))

	status, err := f.queue.GetStatus(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, queue.StateCompleted, status.Status)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.Result)
	assert.Equal(t, 2, status.Result.TasksCreated)
	assert.False(t, status.Result.CompletedAt.IsZero())

	assert.Contains(t, f.published.kinds(), events.KindCompleted)
}

func TestResolveFailedRetriesThenDeadLetters(t *testing.T) {
	cfg := queue.DefaultConfig()
	cfg.BackoffBase = time.Millisecond
	f := newQueueFixture(t, cfg)

	jobID, err := f.queue.Enqueue(context.Background(), validPayload())
	require.NoError(t, err)

	// Fail all four attempts.
	for attempt := 1; attempt <= 4; attempt++ {
		var job *queue.Job
		require.Eventually(t, func() bool {
			var leaseErr error
			job, leaseErr = f.queue.Lease(context.Background())
			return leaseErr == nil
		}, time.Second, time.Millisecond, "attempt %d never became leasable", attempt)

		assert.Equal(t, attempt, job.AttemptsMade)
		require.NoError(t, f.queue.ResolveFailed(context.Background(), job, "task creation failed"))
	}

	// No fifth attempt.
	time.Sleep(10 * time.Millisecond)
	_, err = f.queue.Lease(context.Background())
	assert.ErrorIs(t, err, queue.ErrNoJobAvailable)

	// Terminal state visible to pollers, job present in the dead-letter store.
	status, err := f.queue.GetStatus(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, queue.StateFailed, status.Status)
	assert.Equal(t, "task creation failed", status.Error)
	assert.Equal(t, 4, status.Attempts)

	dl, err := f.queue.GetDeadLetter(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 4, dl.AttemptsMade)
	assert.Equal(t, "task creation failed", dl.FailureReason)

	kinds := f.published.kinds()
	retries := 0
	for _, k := range kinds {
		if k == events.KindRetrying {
			retries++
		}
	}
	assert.Equal(t, 3, retries)
	assert.Contains(t, kinds, events.KindFailed)
}

func TestFailedAttemptBecomesLeasableAfterBackoff(t *testing.T) {
	cfg := queue.DefaultConfig()
	cfg.BackoffBase = 20 * time.Millisecond
	f := newQueueFixture(t, cfg)

	_, err := f.queue.Enqueue(context.Background(), validPayload())
	require.NoError(t, err)

	job, err := f.queue.Lease(context.Background())
	require.NoError(t, err)
	require.NoError(t, f.queue.ResolveFailed(context.Background(), job, "boom"))

	// Still delayed: not leasable before the backoff elapses.
	_, err = f.queue.Lease(context.Background())
	assert.ErrorIs(t, err, queue.ErrNoJobAvailable)

	require.Eventually(t, func() bool {
		_, leaseErr := f.queue.Lease(context.Background())
		return leaseErr == nil
	}, time.Second, 5*time.Millisecond)
}

func TestJanitorPurgesCompletedButNeverFailed(t *testing.T) {
	cfg := queue.DefaultConfig()
	cfg.BackoffBase = time.Millisecond
	cfg.CompletedRetention = 20 * time.Millisecond
	cfg.JanitorInterval = 5 * time.Millisecond
	f := newQueueFixture(t, cfg)

	// One job completes.
	completedID, err := f.queue.Enqueue(context.Background(), validPayload())
	require.NoError(t, err)
	job, err := f.queue.Lease(context.Background())
	require.NoError(t, err)
	require.NoError(t, f.queue.ResolveCompleted(context.Background(), job, &queue.Result{}))

	// Another exhausts its retries and fails.
	payload := validPayload()
	payload.PlanID = "650e8400-e29b-41d4-a716-446655440001"
	failedID, err := f.queue.Enqueue(context.Background(), payload)
	require.NoError(t, err)
	for attempt := 1; attempt <= 4; attempt++ {
		var j *queue.Job
		require.Eventually(t, func() bool {
			var leaseErr error
			j, leaseErr = f.queue.Lease(context.Background())
			return leaseErr == nil
		}, time.Second, time.Millisecond)
		require.NoError(t, f.queue.ResolveFailed(context.Background(), j, "boom"))
	}

	f.queue.StartJanitor()

	// The completed job is purged once past retention.
	require.Eventually(t, func() bool {
		status, statusErr := f.queue.GetStatus(context.Background(), completedID)
		return statusErr == nil && status == nil
	}, time.Second, 5*time.Millisecond)

	// The failed job survives every sweep.
	status, err := f.queue.GetStatus(context.Background(), failedID)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, queue.StateFailed, status.Status)
}

func TestJanitorRecoversExpiredLease(t *testing.T) {
	cfg := queue.DefaultConfig()
	cfg.AttemptTimeout = 20 * time.Millisecond
	cfg.BackoffBase = time.Millisecond
	cfg.JanitorInterval = 5 * time.Millisecond
	f := newQueueFixture(t, cfg)

	jobID, err := f.queue.Enqueue(context.Background(), validPayload())
	require.NoError(t, err)

	_, err = f.queue.Lease(context.Background())
	require.NoError(t, err)

	f.queue.StartJanitor()

	// The worker never resolves; the expired lease is treated as a failed
	// attempt and the job is delayed for retry.
	require.Eventually(t, func() bool {
		status, statusErr := f.queue.GetStatus(context.Background(), jobID)
		if statusErr != nil || status == nil {
			return false
		}
		return status.Status == queue.StateDelayed || status.Status == queue.StateActive && status.Attempts > 1
	}, time.Second, 5*time.Millisecond)

	status, err := f.queue.GetStatus(context.Background(), jobID)
	require.NoError(t, err)
	assert.Contains(t, status.Error, "lease expired")
}

func TestReplayDeadLetter(t *testing.T) {
	cfg := queue.DefaultConfig()
	cfg.BackoffBase = time.Millisecond
	f := newQueueFixture(t, cfg)

	originalID, err := f.queue.Enqueue(context.Background(), validPayload())
	require.NoError(t, err)

	for attempt := 1; attempt <= 4; attempt++ {
		var job *queue.Job
		require.Eventually(t, func() bool {
			var leaseErr error
			job, leaseErr = f.queue.Lease(context.Background())
			return leaseErr == nil
		}, time.Second, time.Millisecond)
		require.NoError(t, f.queue.ResolveFailed(context.Background(), job, "boom"))
	}

	newID, err := f.queue.ReplayDeadLetter(context.Background(), originalID)
	require.NoError(t, err)
	assert.NotEqual(t, originalID, newID)
	assert.True(t, strings.HasPrefix(newID, validPlanID+"-"))

	status, err := f.queue.GetStatus(context.Background(), newID)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, queue.StateWaiting, status.Status)
	assert.Equal(t, 0, status.Attempts)

	dl, err := f.queue.GetDeadLetter(context.Background(), originalID)
	require.NoError(t, err)
	assert.NotNil(t, dl.ReplayedAt)
}

func TestNewFailsWhenDeadLetterStoreUnavailable(t *testing.T) {
	deadLetters := queuetest.NewDeadLetterStore()
	deadLetters.FailWith = errors.New("connection refused")

	_, err := queue.New(
		context.Background(),
		queuetest.NewJobStore(),
		deadLetters,
		nil,
		queue.DefaultConfig(),
		testLogger(),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dead-letter store not available")
}
