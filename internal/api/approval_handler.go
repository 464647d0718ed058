// Package api provides HTTP handlers for the API.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/planwise/planwise-api/internal/api/shared"
	"github.com/planwise/planwise-api/internal/platform/logger"
	"github.com/planwise/planwise-api/internal/queue"
	"github.com/planwise/planwise-api/internal/service"
)

// ApprovePlanResponse is the body returned after a plan is accepted.
type ApprovePlanResponse struct {
	JobID string `json:"jobId"`
}

// ApprovalHandler handles plan approval HTTP requests
type ApprovalHandler struct {
	pipeline service.PipelineService
	logger   *slog.Logger
}

// NewApprovalHandler creates a new ApprovalHandler
func NewApprovalHandler(pipeline service.PipelineService, logger *slog.Logger) *ApprovalHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ApprovalHandler")
	}

	return &ApprovalHandler{
		pipeline: pipeline,
		logger:   logger.With(slog.String("component", "approval_handler")),
	}
}

// ApprovePlan handles POST /plans/approve requests.
// It enqueues a task-creation job for the approved plan and returns the
// job id for polling. The request is accepted, not executed: a 202 means
// the plan entered the queue, nothing more.
func (h *ApprovalHandler) ApprovePlan(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var payload queue.Payload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		log.Debug("failed to decode approval request", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	jobID, err := h.pipeline.ApprovePlan(r.Context(), payload)
	if err != nil {
		var validationErr *queue.ValidationError
		if errors.As(err, &validationErr) {
			log.Debug("approval payload rejected",
				slog.String("plan_id", payload.PlanID),
				slog.Int("violations", len(validationErr.Violations)))
		}
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("plan approved and job enqueued",
		slog.String("plan_id", payload.PlanID),
		slog.String("job_id", jobID),
		slog.String("approved_by", shared.GetSubject(r.Context())))

	shared.RespondWithJSON(w, r, http.StatusAccepted, ApprovePlanResponse{JobID: jobID})
}
