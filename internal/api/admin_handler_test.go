package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwise/planwise-api/internal/queue"
	"github.com/planwise/planwise-api/internal/store"
)

func TestListDeadLettersDefaults(t *testing.T) {
	var gotLimit, gotOffset int
	mockService := &mockPipelineService{
		listDeadLettersFn: func(ctx context.Context, limit, offset int) ([]*queue.DeadLetter, error) {
			gotLimit, gotOffset = limit, offset
			return []*queue.DeadLetter{
				{
					JobID:          testPlanID + "-1757000000000",
					Payload:        queue.Payload{PlanID: testPlanID},
					FailureReason:  "attempt timed out after 10s",
					AttemptsMade:   4,
					DeadLetteredAt: time.Now().UTC(),
				},
			}, nil
		},
	}

	handler := NewAdminHandler(mockService, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/admin/dead-letters", nil)
	rr := httptest.NewRecorder()

	handler.ListDeadLetters(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, defaultDeadLetterLimit, gotLimit)
	assert.Equal(t, 0, gotOffset)

	var resp ListDeadLettersResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.DeadLetters, 1)
	assert.Equal(t, testPlanID+"-1757000000000", resp.DeadLetters[0].JobID)
	assert.Equal(t, "attempt timed out after 10s", resp.DeadLetters[0].FailureReason)
	assert.Equal(t, 4, resp.DeadLetters[0].AttemptsMade)
}

func TestListDeadLettersClampsLimit(t *testing.T) {
	tests := []struct {
		name          string
		query         string
		expectedLimit int
		expectedOff   int
	}{
		{name: "explicit paging", query: "?limit=10&offset=20", expectedLimit: 10, expectedOff: 20},
		{name: "limit above cap", query: "?limit=10000", expectedLimit: defaultDeadLetterLimit, expectedOff: 0},
		{name: "negative values", query: "?limit=-1&offset=-5", expectedLimit: defaultDeadLetterLimit, expectedOff: 0},
		{name: "malformed values", query: "?limit=abc&offset=xyz", expectedLimit: defaultDeadLetterLimit, expectedOff: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotLimit, gotOffset int
			mockService := &mockPipelineService{
				listDeadLettersFn: func(ctx context.Context, limit, offset int) ([]*queue.DeadLetter, error) {
					gotLimit, gotOffset = limit, offset
					return nil, nil
				},
			}

			handler := NewAdminHandler(mockService, discardLogger())

			req := httptest.NewRequest(http.MethodGet, "/api/admin/dead-letters"+tc.query, nil)
			rr := httptest.NewRecorder()

			handler.ListDeadLetters(rr, req)

			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tc.expectedLimit, gotLimit)
			assert.Equal(t, tc.expectedOff, gotOffset)
		})
	}
}

func replayRequest(jobID string) *http.Request {
	req := httptest.NewRequest(
		http.MethodPost, "/api/admin/dead-letters/"+jobID+"/replay", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("jobID", jobID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestReplayDeadLetterAccepted(t *testing.T) {
	originalID := testPlanID + "-1757000000000"
	freshID := testPlanID + "-1757000099999"

	mockService := &mockPipelineService{
		replayDeadLetterFn: func(ctx context.Context, jobID string) (string, error) {
			require.Equal(t, originalID, jobID)
			return freshID, nil
		},
	}

	handler := NewAdminHandler(mockService, discardLogger())
	rr := httptest.NewRecorder()

	handler.ReplayDeadLetter(rr, replayRequest(originalID))

	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp ReplayResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, freshID, resp.JobID)
}

func TestReplayDeadLetterUnknownID(t *testing.T) {
	mockService := &mockPipelineService{
		replayDeadLetterFn: func(ctx context.Context, jobID string) (string, error) {
			return "", store.ErrDeadLetterNotFound
		},
	}

	handler := NewAdminHandler(mockService, discardLogger())
	rr := httptest.NewRecorder()

	handler.ReplayDeadLetter(rr, replayRequest("no-such-job"))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Dead letter not found")
}
