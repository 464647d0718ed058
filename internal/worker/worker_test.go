package worker_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwise/planwise-api/internal/platform/logger"
	"github.com/planwise/planwise-api/internal/queue"
	"github.com/planwise/planwise-api/internal/queue/queuetest"
	"github.com/planwise/planwise-api/internal/worker"
)

const testPlanID = "550e8400-e29b-41d4-a716-446655440000"

// stubCreator runs a configurable function per attempt and counts calls.
type stubCreator struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, job *queue.Job, report worker.ProgressFunc) (*queue.Result, error)
}

func (c *stubCreator) CreateTasks(ctx context.Context, job *queue.Job, report worker.ProgressFunc) (*queue.Result, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.fn(ctx, job, report)
}

func (c *stubCreator) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&logger.TestLogBuffer{}, nil))
}

func testPayload() queue.Payload {
	return queue.Payload{
		PlanID:   testPlanID,
		Channels: []string{"email"},
		Opportunities: []queue.Opportunity{
			{ID: "opp-1", Title: "Renewal outreach", Phase: "1"},
		},
		Metadata: queue.Metadata{CreatedBy: "admin@example.com"},
	}
}

type workerFixture struct {
	queue   *queue.Queue
	jobs    *queuetest.JobStore
	creator *stubCreator
	worker  *worker.Worker
}

func newWorkerFixture(t *testing.T, qcfg queue.Config, creator *stubCreator) *workerFixture {
	t.Helper()

	jobs := queuetest.NewJobStore()
	deadLetters := queuetest.NewDeadLetterStore()

	q, err := queue.New(context.Background(), jobs, deadLetters, nil, qcfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(q.Close)

	w := worker.New(q, creator, worker.Config{
		Concurrency:  1,
		PollInterval: 5 * time.Millisecond,
		DrainTimeout: time.Second,
	}, testLogger())
	t.Cleanup(w.Stop)

	return &workerFixture{queue: q, jobs: jobs, creator: creator, worker: w}
}

func TestWorkerCompletesJob(t *testing.T) {
	creator := &stubCreator{
		fn: func(ctx context.Context, job *queue.Job, report worker.ProgressFunc) (*queue.Result, error) {
			report(10)
			report(30)
			report(90)
			return &queue.Result{TasksCreated: 1, TaskIDs: []string{"task-1"}}, nil
		},
	}
	f := newWorkerFixture(t, queue.DefaultConfig(), creator)

	jobID, err := f.queue.Enqueue(context.Background(), testPayload())
	require.NoError(t, err)

	f.worker.Start()

	require.Eventually(t, func() bool {
		status, statusErr := f.queue.GetStatus(context.Background(), jobID)
		return statusErr == nil && status != nil && status.Status == queue.StateCompleted
	}, 2*time.Second, 5*time.Millisecond)

	status, err := f.queue.GetStatus(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 100, status.Progress)
	assert.Equal(t, 1, status.Attempts)
	require.NotNil(t, status.Result)
	assert.Equal(t, 1, status.Result.TasksCreated)
	assert.Equal(t, []string{"task-1"}, status.Result.TaskIDs)
	assert.Equal(t, 1, creator.callCount())
}

func TestWorkerRetriesUntilDeadLetter(t *testing.T) {
	creator := &stubCreator{
		fn: func(ctx context.Context, job *queue.Job, report worker.ProgressFunc) (*queue.Result, error) {
			return nil, errors.New("task creation failed")
		},
	}

	qcfg := queue.DefaultConfig()
	qcfg.BackoffBase = time.Millisecond
	f := newWorkerFixture(t, qcfg, creator)

	jobID, err := f.queue.Enqueue(context.Background(), testPayload())
	require.NoError(t, err)

	f.worker.Start()

	require.Eventually(t, func() bool {
		status, statusErr := f.queue.GetStatus(context.Background(), jobID)
		return statusErr == nil && status != nil && status.Status == queue.StateFailed
	}, 2*time.Second, 5*time.Millisecond)

	status, err := f.queue.GetStatus(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 4, status.Attempts)
	assert.Equal(t, "task creation failed", status.Error)
	assert.Equal(t, 4, creator.callCount())

	dl, err := f.queue.GetDeadLetter(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, "task creation failed", dl.FailureReason)

	// The terminal state is sticky: no further attempts happen.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 4, creator.callCount())
}

func TestWorkerEnforcesAttemptTimeout(t *testing.T) {
	creator := &stubCreator{
		fn: func(ctx context.Context, job *queue.Job, report worker.ProgressFunc) (*queue.Result, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	qcfg := queue.DefaultConfig()
	qcfg.AttemptTimeout = 30 * time.Millisecond
	qcfg.BackoffBase = time.Hour // keep the job from retrying during the test
	f := newWorkerFixture(t, qcfg, creator)

	jobID, err := f.queue.Enqueue(context.Background(), testPayload())
	require.NoError(t, err)

	f.worker.Start()

	require.Eventually(t, func() bool {
		status, statusErr := f.queue.GetStatus(context.Background(), jobID)
		return statusErr == nil && status != nil && status.Status == queue.StateDelayed
	}, 2*time.Second, 5*time.Millisecond)

	status, err := f.queue.GetStatus(context.Background(), jobID)
	require.NoError(t, err)
	assert.Contains(t, status.Error, "attempt timed out")
	assert.Equal(t, 1, status.Attempts)
}

func TestWorkerStopDrainsInFlightAttempt(t *testing.T) {
	started := make(chan struct{})
	creator := &stubCreator{
		fn: func(ctx context.Context, job *queue.Job, report worker.ProgressFunc) (*queue.Result, error) {
			close(started)
			time.Sleep(50 * time.Millisecond)
			return &queue.Result{TasksCreated: 1}, nil
		},
	}
	f := newWorkerFixture(t, queue.DefaultConfig(), creator)

	jobID, err := f.queue.Enqueue(context.Background(), testPayload())
	require.NoError(t, err)

	f.worker.Start()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("attempt never started")
	}

	// Stop blocks until the in-flight attempt finishes and resolves.
	f.worker.Stop()

	status, err := f.queue.GetStatus(context.Background(), jobID)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, queue.StateCompleted, status.Status)
}
