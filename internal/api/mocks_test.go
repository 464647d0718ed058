package api

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/planwise/planwise-api/internal/domain"
	"github.com/planwise/planwise-api/internal/queue"
)

// mockPipelineService is a mock implementation of the PipelineService interface
type mockPipelineService struct {
	approvePlanFn      func(ctx context.Context, payload queue.Payload) (string, error)
	jobStatusFn        func(ctx context.Context, jobID string) (*queue.JobStatus, error)
	listDeadLettersFn  func(ctx context.Context, limit, offset int) ([]*queue.DeadLetter, error)
	replayDeadLetterFn func(ctx context.Context, jobID string) (string, error)
}

func (m *mockPipelineService) ApprovePlan(ctx context.Context, payload queue.Payload) (string, error) {
	return m.approvePlanFn(ctx, payload)
}

func (m *mockPipelineService) JobStatus(ctx context.Context, jobID string) (*queue.JobStatus, error) {
	return m.jobStatusFn(ctx, jobID)
}

func (m *mockPipelineService) ListDeadLetters(
	ctx context.Context,
	limit, offset int,
) ([]*queue.DeadLetter, error) {
	return m.listDeadLettersFn(ctx, limit, offset)
}

func (m *mockPipelineService) ReplayDeadLetter(ctx context.Context, jobID string) (string, error) {
	return m.replayDeadLetterFn(ctx, jobID)
}

// mockTaskService is a mock implementation of the TaskService interface
type mockTaskService struct {
	getTaskFn       func(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)
	listPlanTasksFn func(ctx context.Context, planID uuid.UUID) ([]*domain.Task, error)
	approveTaskFn   func(ctx context.Context, taskID uuid.UUID, approvedBy string) (*domain.Task, error)
	rejectTaskFn    func(ctx context.Context, taskID uuid.UUID, rejectedBy, reason string) (*domain.Task, error)
	assignTaskFn    func(ctx context.Context, taskID uuid.UUID, assignedTo string) (*domain.Task, error)
	completeTaskFn  func(ctx context.Context, taskID uuid.UUID, actualHours float64, notes string) (*domain.Task, error)
}

func (m *mockTaskService) GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	return m.getTaskFn(ctx, taskID)
}

func (m *mockTaskService) ListPlanTasks(
	ctx context.Context,
	planID uuid.UUID,
) ([]*domain.Task, error) {
	return m.listPlanTasksFn(ctx, planID)
}

func (m *mockTaskService) ApproveTask(
	ctx context.Context,
	taskID uuid.UUID,
	approvedBy string,
) (*domain.Task, error) {
	return m.approveTaskFn(ctx, taskID, approvedBy)
}

func (m *mockTaskService) RejectTask(
	ctx context.Context,
	taskID uuid.UUID,
	rejectedBy, reason string,
) (*domain.Task, error) {
	return m.rejectTaskFn(ctx, taskID, rejectedBy, reason)
}

func (m *mockTaskService) AssignTask(
	ctx context.Context,
	taskID uuid.UUID,
	assignedTo string,
) (*domain.Task, error) {
	return m.assignTaskFn(ctx, taskID, assignedTo)
}

func (m *mockTaskService) CompleteTask(
	ctx context.Context,
	taskID uuid.UUID,
	actualHours float64,
	notes string,
) (*domain.Task, error) {
	return m.completeTaskFn(ctx, taskID, actualHours, notes)
}

// discardLogger returns a logger for handler construction in tests.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
