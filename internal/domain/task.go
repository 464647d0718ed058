package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

// Possible task status values.
const (
	TaskStatusPending          TaskStatus = "pending"
	TaskStatusAwaitingApproval TaskStatus = "awaiting_approval"
	TaskStatusApproved         TaskStatus = "approved"
	TaskStatusRejected         TaskStatus = "rejected"
	TaskStatusInProgress       TaskStatus = "in_progress"
	TaskStatusCompleted        TaskStatus = "completed"
)

// TaskPriority represents the urgency of a task.
type TaskPriority string

// Possible task priority values.
const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Task-specific validation errors.
var (
	ErrTaskIDEmpty         = errors.New("task ID cannot be empty")
	ErrTaskPlanIDEmpty     = errors.New("task plan ID cannot be empty")
	ErrTaskTitleEmpty      = errors.New("task title cannot be empty")
	ErrTaskChannelEmpty    = errors.New("task channel cannot be empty")
	ErrInvalidTaskStatus   = errors.New("invalid task status")
	ErrInvalidTaskPriority = errors.New("invalid task priority")
)

// Task represents a concrete unit of work created from an approved
// marketplace analysis plan. Tasks are never deleted; they only move
// through their status lifecycle. All mutation happens through the
// transition methods below, which enforce the approval invariant.
type Task struct {
	ID            uuid.UUID    `json:"id"`
	PlanID        uuid.UUID    `json:"plan_id"`
	OpportunityID string       `json:"opportunity_id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Channel       string       `json:"channel"`
	Priority      TaskPriority `json:"priority"`
	Status        TaskStatus   `json:"status"`
	AdminApproved bool         `json:"admin_approved"`

	ApprovedBy      string     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectedBy      string     `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	AssignedTo      string     `json:"assigned_to,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ActualHours     float64    `json:"actual_hours,omitempty"`
	CompletionNotes string     `json:"completion_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTask creates a new Task for the given plan and opportunity.
// Freshly created tasks start in awaiting_approval: they exist because a
// human approved the plan, but each task still needs its own admin approval
// before it can be assigned.
// Returns an error if validation fails.
func NewTask(
	planID uuid.UUID,
	opportunityID, title, description, channel string,
	priority TaskPriority,
) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:            uuid.New(),
		PlanID:        planID,
		OpportunityID: opportunityID,
		Title:         title,
		Description:   description,
		Channel:       channel,
		Priority:      priority,
		Status:        TaskStatusAwaitingApproval,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrTaskIDEmpty
	}

	if t.PlanID == uuid.Nil {
		return ErrTaskPlanIDEmpty
	}

	if t.Title == "" {
		return ErrTaskTitleEmpty
	}

	if t.Channel == "" {
		return ErrTaskChannelEmpty
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	if !isValidTaskPriority(t.Priority) {
		return ErrInvalidTaskPriority
	}

	return nil
}

// Approve transitions the task to approved and records who approved it.
// Only permitted from pending or awaiting_approval.
func (t *Task) Approve(approvedBy string) error {
	if approvedBy == "" {
		return ErrEmptyActor
	}

	if t.Status != TaskStatusPending && t.Status != TaskStatusAwaitingApproval {
		return fmt.Errorf("%w: cannot approve task in status %q", ErrInvalidTransition, t.Status)
	}

	now := time.Now().UTC()
	t.Status = TaskStatusApproved
	t.AdminApproved = true
	t.ApprovedBy = approvedBy
	t.ApprovedAt = &now
	t.UpdatedAt = now
	return nil
}

// Reject transitions the task to the rejected terminal state.
// Only permitted from pending or awaiting_approval, and requires a
// non-empty reason.
func (t *Task) Reject(rejectedBy, reason string) error {
	if rejectedBy == "" {
		return ErrEmptyActor
	}

	if reason == "" {
		return ErrEmptyRejectionReason
	}

	if t.Status != TaskStatusPending && t.Status != TaskStatusAwaitingApproval {
		return fmt.Errorf("%w: cannot reject task in status %q", ErrInvalidTransition, t.Status)
	}

	now := time.Now().UTC()
	t.Status = TaskStatusRejected
	t.RejectedBy = rejectedBy
	t.RejectedAt = &now
	t.RejectionReason = reason
	t.UpdatedAt = now
	return nil
}

// Assign transitions the task to in_progress and records the assignee.
// Only permitted from approved, and the AdminApproved flag must be set;
// the check lives here so no caller can assign an unapproved task.
func (t *Task) Assign(assignedTo string) error {
	if assignedTo == "" {
		return ErrEmptyAssignee
	}

	if t.Status != TaskStatusApproved {
		return fmt.Errorf("%w: cannot assign task in status %q", ErrInvalidTransition, t.Status)
	}

	if !t.AdminApproved {
		return ErrTaskNotApproved
	}

	now := time.Now().UTC()
	t.Status = TaskStatusInProgress
	t.AssignedTo = assignedTo
	t.StartedAt = &now
	t.UpdatedAt = now
	return nil
}

// Complete transitions the task to the completed terminal state and
// records the actual effort. Only permitted from in_progress.
func (t *Task) Complete(actualHours float64, notes string) error {
	if actualHours < 0 {
		return ErrNegativeActualHours
	}

	if t.Status != TaskStatusInProgress {
		return fmt.Errorf("%w: cannot complete task in status %q", ErrInvalidTransition, t.Status)
	}

	now := time.Now().UTC()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.ActualHours = actualHours
	t.CompletionNotes = notes
	t.UpdatedAt = now
	return nil
}

// IsTerminal reports whether the task has reached a terminal status.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusRejected
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusAwaitingApproval, TaskStatusApproved,
		TaskStatusRejected, TaskStatusInProgress, TaskStatusCompleted:
		return true
	default:
		return false
	}
}

// isValidTaskPriority checks if the given priority is a valid TaskPriority.
func isValidTaskPriority(priority TaskPriority) bool {
	switch priority {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	default:
		return false
	}
}
