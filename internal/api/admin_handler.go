package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/planwise/planwise-api/internal/api/shared"
	"github.com/planwise/planwise-api/internal/platform/logger"
	"github.com/planwise/planwise-api/internal/queue"
	"github.com/planwise/planwise-api/internal/service"
)

const (
	defaultDeadLetterLimit = 50
	maxDeadLetterLimit     = 200
)

// DeadLetterResponse represents a dead-lettered job for admin inspection
type DeadLetterResponse struct {
	JobID          string        `json:"jobId"`
	Payload        queue.Payload `json:"payload"`
	FailureReason  string        `json:"failureReason"`
	AttemptsMade   int           `json:"attemptsMade"`
	DeadLetteredAt time.Time     `json:"deadLetteredAt"`
	ReplayedAt     *time.Time    `json:"replayedAt,omitempty"`
}

// ListDeadLettersResponse wraps the dead-letter listing
type ListDeadLettersResponse struct {
	DeadLetters []DeadLetterResponse `json:"deadLetters"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

// ReplayResponse carries the fresh job id produced by a replay
type ReplayResponse struct {
	JobID string `json:"jobId"`
}

// AdminHandler handles administrative dead-letter HTTP requests
type AdminHandler struct {
	pipeline service.PipelineService
	logger   *slog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(pipeline service.PipelineService, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AdminHandler")
	}

	return &AdminHandler{
		pipeline: pipeline,
		logger:   logger.With(slog.String("component", "admin_handler")),
	}
}

// ListDeadLetters handles GET /admin/dead-letters requests.
// Supports limit and offset query parameters for paging.
func (h *AdminHandler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultDeadLetterLimit)
	if limit < 1 || limit > maxDeadLetterLimit {
		limit = defaultDeadLetterLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	entries, err := h.pipeline.ListDeadLetters(r.Context(), limit, offset)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	resp := ListDeadLettersResponse{
		DeadLetters: make([]DeadLetterResponse, 0, len(entries)),
		Limit:       limit,
		Offset:      offset,
	}
	for _, entry := range entries {
		resp.DeadLetters = append(resp.DeadLetters, DeadLetterResponse{
			JobID:          entry.JobID,
			Payload:        entry.Payload,
			FailureReason:  entry.FailureReason,
			AttemptsMade:   entry.AttemptsMade,
			DeadLetteredAt: entry.DeadLetteredAt,
			ReplayedAt:     entry.ReplayedAt,
		})
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// ReplayDeadLetter handles POST /admin/dead-letters/{jobID}/replay requests.
func (h *AdminHandler) ReplayDeadLetter(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Job ID is required")
		return
	}

	newJobID, err := h.pipeline.ReplayDeadLetter(r.Context(), jobID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("dead letter replayed",
		slog.String("job_id", jobID),
		slog.String("new_job_id", newJobID),
		slog.String("replayed_by", shared.GetSubject(r.Context())))
	shared.RespondWithJSON(w, r, http.StatusAccepted, ReplayResponse{JobID: newJobID})
}

// queryInt parses an integer query parameter, falling back to def when
// the parameter is absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
