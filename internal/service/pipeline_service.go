package service

import (
	"context"
	"log/slog"

	"github.com/planwise/planwise-api/internal/domain"
	"github.com/planwise/planwise-api/internal/queue"
)

// PipelineService is the application entrypoint into the approval
// pipeline: it accepts approved plans, exposes job polling, and fronts
// the dead-letter operations for admin tooling.
type PipelineService interface {
	// ApprovePlan enqueues a task-creation job for an approved plan and
	// returns the job id for status polling.
	ApprovePlan(ctx context.Context, payload queue.Payload) (string, error)

	// JobStatus returns the polling view of a job, or (nil, nil) when
	// the job id is unknown.
	JobStatus(ctx context.Context, jobID string) (*queue.JobStatus, error)

	// ListDeadLetters returns dead-lettered jobs for inspection.
	ListDeadLetters(ctx context.Context, limit, offset int) ([]*queue.DeadLetter, error)

	// ReplayDeadLetter re-enqueues a dead-lettered payload as a fresh job.
	ReplayDeadLetter(ctx context.Context, jobID string) (string, error)
}

// pipelineServiceImpl implements the PipelineService interface
type pipelineServiceImpl struct {
	queue  *queue.Queue
	logger *slog.Logger
}

// NewPipelineService creates a new PipelineService over the work queue.
func NewPipelineService(q *queue.Queue, logger *slog.Logger) (PipelineService, error) {
	if q == nil {
		return nil, domain.NewValidationError("queue", "cannot be nil", domain.ErrValidation)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &pipelineServiceImpl{
		queue:  q,
		logger: logger.With(slog.String("component", "pipeline_service")),
	}, nil
}

// ApprovePlan implements PipelineService.ApprovePlan
func (s *pipelineServiceImpl) ApprovePlan(ctx context.Context, payload queue.Payload) (string, error) {
	return s.queue.Enqueue(ctx, payload)
}

// JobStatus implements PipelineService.JobStatus
func (s *pipelineServiceImpl) JobStatus(ctx context.Context, jobID string) (*queue.JobStatus, error) {
	return s.queue.GetStatus(ctx, jobID)
}

// ListDeadLetters implements PipelineService.ListDeadLetters
func (s *pipelineServiceImpl) ListDeadLetters(ctx context.Context, limit, offset int) ([]*queue.DeadLetter, error) {
	return s.queue.ListDeadLetters(ctx, limit, offset)
}

// ReplayDeadLetter implements PipelineService.ReplayDeadLetter
func (s *pipelineServiceImpl) ReplayDeadLetter(ctx context.Context, jobID string) (string, error) {
	return s.queue.ReplayDeadLetter(ctx, jobID)
}
