package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/planwise/planwise-api/internal/domain"
	"github.com/planwise/planwise-api/internal/platform/logger"
	"github.com/planwise/planwise-api/internal/store"
)

// TaskRepository defines the repository interface for the service layer
type TaskRepository interface {
	// Create saves a new task to the store
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// Update persists the full current state of an existing task
	Update(ctx context.Context, task *domain.Task) error

	// ListByPlan retrieves all tasks created for the given plan
	ListByPlan(ctx context.Context, planID uuid.UUID) ([]*domain.Task, error)

	// WithTx returns a new repository instance that uses the provided transaction
	// This is used for transactional operations
	WithTx(tx *sql.Tx) TaskRepository

	// DB returns the underlying database connection
	DB() *sql.DB
}

// TaskService drives the task lifecycle. Every mutation loads the task,
// applies a domain transition, and persists the result in a single
// transaction, so concurrent transition attempts cannot interleave.
type TaskService interface {
	// GetTask retrieves a task by its ID
	GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)

	// ListPlanTasks retrieves all tasks created for the given plan
	ListPlanTasks(ctx context.Context, planID uuid.UUID) ([]*domain.Task, error)

	// ApproveTask marks the task admin-approved and eligible for assignment
	ApproveTask(ctx context.Context, taskID uuid.UUID, approvedBy string) (*domain.Task, error)

	// RejectTask moves the task to the rejected terminal state
	RejectTask(ctx context.Context, taskID uuid.UUID, rejectedBy, reason string) (*domain.Task, error)

	// AssignTask assigns an approved task and starts work on it
	AssignTask(ctx context.Context, taskID uuid.UUID, assignedTo string) (*domain.Task, error)

	// CompleteTask finishes an in-progress task with the actual effort spent
	CompleteTask(ctx context.Context, taskID uuid.UUID, actualHours float64, notes string) (*domain.Task, error)
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	taskRepo TaskRepository
	logger   *slog.Logger
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(taskRepo TaskRepository, logger *slog.Logger) (TaskService, error) {
	if taskRepo == nil {
		return nil, domain.NewValidationError("taskRepo", "cannot be nil", domain.ErrValidation)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		taskRepo: taskRepo,
		logger:   logger.With(slog.String("component", "task_service")),
	}, nil
}

// GetTask implements TaskService.GetTask
func (s *taskServiceImpl) GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, err
		}
		return nil, NewTaskServiceError("get", "failed to retrieve task", err)
	}
	return task, nil
}

// ListPlanTasks implements TaskService.ListPlanTasks
func (s *taskServiceImpl) ListPlanTasks(ctx context.Context, planID uuid.UUID) ([]*domain.Task, error) {
	tasks, err := s.taskRepo.ListByPlan(ctx, planID)
	if err != nil {
		return nil, NewTaskServiceError("list", "failed to list plan tasks", err)
	}
	return tasks, nil
}

// ApproveTask implements TaskService.ApproveTask
func (s *taskServiceImpl) ApproveTask(
	ctx context.Context,
	taskID uuid.UUID,
	approvedBy string,
) (*domain.Task, error) {
	return s.transition(ctx, taskID, "approve", func(task *domain.Task) error {
		return task.Approve(approvedBy)
	})
}

// RejectTask implements TaskService.RejectTask
func (s *taskServiceImpl) RejectTask(
	ctx context.Context,
	taskID uuid.UUID,
	rejectedBy, reason string,
) (*domain.Task, error) {
	return s.transition(ctx, taskID, "reject", func(task *domain.Task) error {
		return task.Reject(rejectedBy, reason)
	})
}

// AssignTask implements TaskService.AssignTask
func (s *taskServiceImpl) AssignTask(
	ctx context.Context,
	taskID uuid.UUID,
	assignedTo string,
) (*domain.Task, error) {
	return s.transition(ctx, taskID, "assign", func(task *domain.Task) error {
		return task.Assign(assignedTo)
	})
}

// CompleteTask implements TaskService.CompleteTask
func (s *taskServiceImpl) CompleteTask(
	ctx context.Context,
	taskID uuid.UUID,
	actualHours float64,
	notes string,
) (*domain.Task, error) {
	return s.transition(ctx, taskID, "complete", func(task *domain.Task) error {
		return task.Complete(actualHours, notes)
	})
}

// transition runs one load-transition-save cycle in a transaction.
// Domain transition errors pass through unwrapped so callers can match
// them with errors.Is; infrastructure errors get wrapped.
func (s *taskServiceImpl) transition(
	ctx context.Context,
	taskID uuid.UUID,
	operation string,
	apply func(task *domain.Task) error,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var task *domain.Task
	err := store.RunInTransaction(
		ctx,
		s.taskRepo.DB(),
		func(ctx context.Context, tx *sql.Tx) error {
			var txErr error
			task, txErr = applyTransition(ctx, s.taskRepo.WithTx(tx), taskID, apply)
			return txErr
		},
	)
	if err != nil {
		return nil, err
	}

	log.Info("task transition applied",
		slog.String("task_id", taskID.String()),
		slog.String("operation", operation),
		slog.String("status", string(task.Status)))

	return task, nil
}

// applyTransition performs the load-transition-save cycle against the
// given (transaction-scoped) repository.
func applyTransition(
	ctx context.Context,
	repo TaskRepository,
	taskID uuid.UUID,
	apply func(task *domain.Task) error,
) (*domain.Task, error) {
	task, err := repo.GetByID(ctx, taskID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load task: %w", err)
	}

	if err := apply(task); err != nil {
		return nil, err
	}

	if err := repo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	return task, nil
}
