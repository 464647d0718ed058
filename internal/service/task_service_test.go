package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwise/planwise-api/internal/domain"
	"github.com/planwise/planwise-api/internal/store"
)

func newStoredTask(t *testing.T, repo *fakeTaskRepository) *domain.Task {
	t.Helper()

	task, err := domain.NewTask(
		uuid.New(),
		"opp-1",
		"Expand into DACH market",
		"Initial outreach for the DACH expansion plan",
		"email",
		domain.TaskPriorityHigh,
	)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), task))
	return task
}

func TestNewTaskServiceRequiresRepository(t *testing.T) {
	_, err := NewTaskService(nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestApplyTransitionApprove(t *testing.T) {
	repo := newFakeTaskRepository()
	task := newStoredTask(t, repo)

	updated, err := applyTransition(context.Background(), repo, task.ID, func(task *domain.Task) error {
		return task.Approve("admin@example.com")
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusApproved, updated.Status)
	assert.True(t, updated.AdminApproved)

	stored, err := repo.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusApproved, stored.Status)
}

func TestApplyTransitionUnknownTask(t *testing.T) {
	repo := newFakeTaskRepository()

	_, err := applyTransition(context.Background(), repo, uuid.New(), func(task *domain.Task) error {
		return task.Approve("admin@example.com")
	})
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestApplyTransitionDomainErrorPassesThrough(t *testing.T) {
	repo := newFakeTaskRepository()
	task := newStoredTask(t, repo)

	// Assign straight from awaiting_approval violates the lifecycle.
	_, err := applyTransition(context.Background(), repo, task.ID, func(task *domain.Task) error {
		return task.Assign("worker@example.com")
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// The failed transition must not have been persisted.
	stored, getErr := repo.GetByID(context.Background(), task.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.TaskStatusAwaitingApproval, stored.Status)
}

func TestApplyTransitionSaveErrorIsWrapped(t *testing.T) {
	repo := newFakeTaskRepository()
	task := newStoredTask(t, repo)
	repo.failOnUpdate = errors.New("connection reset")

	_, err := applyTransition(context.Background(), repo, task.ID, func(task *domain.Task) error {
		return task.Approve("admin@example.com")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save task")
}

func TestApplyTransitionFullLifecycle(t *testing.T) {
	repo := newFakeTaskRepository()
	task := newStoredTask(t, repo)
	ctx := context.Background()

	_, err := applyTransition(ctx, repo, task.ID, func(task *domain.Task) error {
		return task.Approve("admin@example.com")
	})
	require.NoError(t, err)

	_, err = applyTransition(ctx, repo, task.ID, func(task *domain.Task) error {
		return task.Assign("worker@example.com")
	})
	require.NoError(t, err)

	updated, err := applyTransition(ctx, repo, task.ID, func(task *domain.Task) error {
		return task.Complete(3.5, "done ahead of schedule")
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, updated.Status)
	assert.Equal(t, 3.5, updated.ActualHours)
	assert.True(t, updated.IsTerminal())
}

func TestGetTaskWrapsInfrastructureErrors(t *testing.T) {
	repo := newFakeTaskRepository()
	repo.failOnGet = errors.New("connection refused")

	svc, err := NewTaskService(repo, nil)
	require.NoError(t, err)

	_, err = svc.GetTask(context.Background(), uuid.New())
	require.Error(t, err)

	var svcErr *TaskServiceError
	assert.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "get", svcErr.Operation)
}

func TestGetTaskNotFoundPassesThrough(t *testing.T) {
	repo := newFakeTaskRepository()

	svc, err := NewTaskService(repo, nil)
	require.NoError(t, err)

	_, err = svc.GetTask(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}
