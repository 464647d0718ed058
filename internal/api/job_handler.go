package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/planwise/planwise-api/internal/api/shared"
	"github.com/planwise/planwise-api/internal/platform/logger"
	"github.com/planwise/planwise-api/internal/service"
)

// JobHandler handles job status HTTP requests
type JobHandler struct {
	pipeline service.PipelineService
	logger   *slog.Logger
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(pipeline service.PipelineService, logger *slog.Logger) *JobHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for JobHandler")
	}

	return &JobHandler{
		pipeline: pipeline,
		logger:   logger.With(slog.String("component", "job_handler")),
	}
}

// GetJobStatus handles GET /jobs/{jobID} requests.
// An unknown job id yields 404; the service treats it as a miss, not an
// error.
func (h *JobHandler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Job ID is required")
		return
	}

	status, err := h.pipeline.JobStatus(r.Context(), jobID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if status == nil {
		log.Debug("job status requested for unknown id", slog.String("job_id", jobID))
		shared.RespondWithError(w, r, http.StatusNotFound, "Job not found")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, status)
}
