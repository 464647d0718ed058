package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/planwise/planwise-api/internal/api/shared"
	"github.com/planwise/planwise-api/internal/domain"
	"github.com/planwise/planwise-api/internal/platform/logger"
	"github.com/planwise/planwise-api/internal/service"
)

// TaskResponse represents the response data for a task
type TaskResponse struct {
	ID              string  `json:"id"`
	PlanID          string  `json:"planId"`
	OpportunityID   string  `json:"opportunityId"`
	Title           string  `json:"title"`
	Description     string  `json:"description,omitempty"`
	Channel         string  `json:"channel"`
	Priority        string  `json:"priority"`
	Status          string  `json:"status"`
	AdminApproved   bool    `json:"adminApproved"`
	ApprovedBy      string  `json:"approvedBy,omitempty"`
	RejectedBy      string  `json:"rejectedBy,omitempty"`
	RejectionReason string  `json:"rejectionReason,omitempty"`
	AssignedTo      string  `json:"assignedTo,omitempty"`
	ActualHours     float64 `json:"actualHours,omitempty"`
	CompletionNotes string  `json:"completionNotes,omitempty"`

	ApprovedAt  *time.Time `json:"approvedAt,omitempty"`
	RejectedAt  *time.Time `json:"rejectedAt,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// taskToResponse transforms a domain task into its API representation.
func taskToResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:              task.ID.String(),
		PlanID:          task.PlanID.String(),
		OpportunityID:   task.OpportunityID,
		Title:           task.Title,
		Description:     task.Description,
		Channel:         task.Channel,
		Priority:        string(task.Priority),
		Status:          string(task.Status),
		AdminApproved:   task.AdminApproved,
		ApprovedBy:      task.ApprovedBy,
		RejectedBy:      task.RejectedBy,
		RejectionReason: task.RejectionReason,
		AssignedTo:      task.AssignedTo,
		ActualHours:     task.ActualHours,
		CompletionNotes: task.CompletionNotes,
		ApprovedAt:      task.ApprovedAt,
		RejectedAt:      task.RejectedAt,
		StartedAt:       task.StartedAt,
		CompletedAt:     task.CompletedAt,
		CreatedAt:       task.CreatedAt,
		UpdatedAt:       task.UpdatedAt,
	}
}

// RejectTaskRequest represents the request body for rejecting a task
type RejectTaskRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// AssignTaskRequest represents the request body for assigning a task
type AssignTaskRequest struct {
	AssignedTo string `json:"assignedTo" validate:"required"`
}

// CompleteTaskRequest represents the request body for completing a task
type CompleteTaskRequest struct {
	ActualHours float64 `json:"actualHours" validate:"gte=0"`
	Notes       string  `json:"notes"`
}

// TaskHandler handles task lifecycle HTTP requests
type TaskHandler struct {
	taskService service.TaskService
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(taskService service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		taskService: taskService,
		logger:      logger.With(slog.String("component", "task_handler")),
	}
}

// taskID extracts and parses the task id URL parameter.
func taskID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "taskID"))
	return id, err == nil
}

// GetTask handles GET /tasks/{taskID} requests.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	task, err := h.taskService.GetTask(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// ListPlanTasks handles GET /plans/{planID}/tasks requests.
func (h *TaskHandler) ListPlanTasks(w http.ResponseWriter, r *http.Request) {
	planID, err := uuid.Parse(chi.URLParam(r, "planID"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid plan ID")
		return
	}

	tasks, err := h.taskService.ListPlanTasks(r.Context(), planID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	resp := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		resp = append(resp, taskToResponse(task))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// ApproveTask handles POST /tasks/{taskID}/approve requests.
// The authenticated operator is recorded as the approver.
func (h *TaskHandler) ApproveTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, ok := taskID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	approvedBy := shared.GetSubject(r.Context())

	task, err := h.taskService.ApproveTask(r.Context(), id, approvedBy)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("task approved",
		slog.String("task_id", id.String()),
		slog.String("approved_by", approvedBy))
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// RejectTask handles POST /tasks/{taskID}/reject requests.
func (h *TaskHandler) RejectTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, ok := taskID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	var req RejectTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Rejection reason is required")
		return
	}

	task, err := h.taskService.RejectTask(r.Context(), id, shared.GetSubject(r.Context()), req.Reason)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("task rejected",
		slog.String("task_id", id.String()),
		slog.String("reason", req.Reason))
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// AssignTask handles POST /tasks/{taskID}/assign requests.
func (h *TaskHandler) AssignTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, ok := taskID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	var req AssignTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Assignee is required")
		return
	}

	task, err := h.taskService.AssignTask(r.Context(), id, req.AssignedTo)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("task assigned",
		slog.String("task_id", id.String()),
		slog.String("assigned_to", req.AssignedTo))
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// CompleteTask handles POST /tasks/{taskID}/complete requests.
func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, ok := taskID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	var req CompleteTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Actual hours cannot be negative")
		return
	}

	task, err := h.taskService.CompleteTask(r.Context(), id, req.ActualHours, req.Notes)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("task completed",
		slog.String("task_id", id.String()),
		slog.Float64("actual_hours", req.ActualHours))
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}
