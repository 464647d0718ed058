package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/planwise/planwise-api/internal/domain"
	"github.com/planwise/planwise-api/internal/queue"
	"github.com/planwise/planwise-api/internal/store"
	"github.com/planwise/planwise-api/internal/worker"
)

// TaskCreatorService turns an approved plan's opportunities into tasks.
// It implements worker.TaskCreator: one task per opportunity per channel,
// created in a single transaction per attempt. Creation is idempotent
// across retries: tasks that already exist for an opportunity-channel
// pair are skipped, so a retried job never duplicates work a previous
// attempt finished.
type TaskCreatorService struct {
	taskRepo TaskRepository
	logger   *slog.Logger
}

// NewTaskCreatorService creates a new TaskCreatorService.
func NewTaskCreatorService(taskRepo TaskRepository, logger *slog.Logger) (*TaskCreatorService, error) {
	if taskRepo == nil {
		return nil, domain.NewValidationError("taskRepo", "cannot be nil", domain.ErrValidation)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &TaskCreatorService{
		taskRepo: taskRepo,
		logger:   logger.With(slog.String("component", "task_creator")),
	}, nil
}

// CreateTasks implements worker.TaskCreator.
func (s *TaskCreatorService) CreateTasks(
	ctx context.Context,
	job *queue.Job,
	report worker.ProgressFunc,
) (*queue.Result, error) {
	planID, err := uuid.Parse(job.Payload.PlanID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlanID, job.Payload.PlanID)
	}

	report(10)

	var taskIDs []string
	var created int

	err = store.RunInTransaction(
		ctx,
		s.taskRepo.DB(),
		func(ctx context.Context, tx *sql.Tx) error {
			var txErr error
			created, taskIDs, txErr = createMissingTasks(ctx, s.taskRepo.WithTx(tx), planID, job.Payload, report)
			return txErr
		},
	)
	if err != nil {
		return nil, err
	}

	report(90)

	s.logger.Info("tasks created for plan",
		slog.String("plan_id", planID.String()),
		slog.String("job_id", job.ID),
		slog.Int("created", created),
		slog.Int("skipped", len(taskIDs)-created))

	return &queue.Result{
		TasksCreated: created,
		TaskIDs:      taskIDs,
	}, nil
}

// createMissingTasks creates one task per opportunity-channel pair that
// does not already have one, against the given (transaction-scoped)
// repository. It returns the count of newly created tasks and the ids
// of every task covering the payload, pre-existing ones included.
func createMissingTasks(
	ctx context.Context,
	repo TaskRepository,
	planID uuid.UUID,
	payload queue.Payload,
	report worker.ProgressFunc,
) (int, []string, error) {
	existing, err := repo.ListByPlan(ctx, planID)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to list existing plan tasks: %w", err)
	}

	done := make(map[string]uuid.UUID, len(existing))
	for _, task := range existing {
		done[task.OpportunityID+"/"+task.Channel] = task.ID
	}

	report(30)

	var created int
	var taskIDs []string

	for _, opp := range payload.Opportunities {
		for _, channel := range payload.Channels {
			if id, ok := done[opp.ID+"/"+channel]; ok {
				taskIDs = append(taskIDs, id.String())
				continue
			}

			task, err := domain.NewTask(
				planID,
				opp.ID,
				fmt.Sprintf("%s (%s)", opp.Title, channel),
				opp.Description,
				channel,
				priorityForPhase(opp.Phase),
			)
			if err != nil {
				return 0, nil, fmt.Errorf("failed to build task for opportunity %s: %w", opp.ID, err)
			}

			if err := repo.Create(ctx, task); err != nil {
				return 0, nil, fmt.Errorf("failed to create task for opportunity %s: %w", opp.ID, err)
			}

			taskIDs = append(taskIDs, task.ID.String())
			created++
		}
	}

	return created, taskIDs, nil
}

// priorityForPhase maps an opportunity's phase to a task priority:
// earlier phases are more urgent.
func priorityForPhase(phase string) domain.TaskPriority {
	switch phase {
	case "1":
		return domain.TaskPriorityHigh
	case "2":
		return domain.TaskPriorityMedium
	default:
		return domain.TaskPriorityLow
	}
}
