package events_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwise/planwise-api/internal/events"
)

func TestWebhookNotifierDeliversCompletedEvent(t *testing.T) {
	var (
		mu       sync.Mutex
		received []byte
		ctype    string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = body
		ctype = r.Header.Get("Content-Type")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := events.NewWebhookNotifier(server.URL, time.Second, testLogger())

	event := events.NewJobEvent(events.KindCompleted, "plan-1-1700000000000", "plan-1")
	event.Result = map[string]any{"tasksCreated": 3}

	require.NoError(t, notifier.Notify(context.Background(), event))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "application/json", ctype)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(received, &payload))
	assert.Equal(t, "job:completed", payload["event"])
	assert.Equal(t, "plan-1-1700000000000", payload["jobId"])
	assert.NotNil(t, payload["result"])
	assert.NotContains(t, payload, "error")
}

func TestWebhookNotifierDeliversFailedEvent(t *testing.T) {
	var (
		mu       sync.Mutex
		received []byte
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = body
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier := events.NewWebhookNotifier(server.URL, time.Second, testLogger())

	event := events.NewJobEvent(events.KindFailed, "job-1", "plan-1")
	event.Error = "task creation failed after 4 attempts"

	require.NoError(t, notifier.Notify(context.Background(), event))

	mu.Lock()
	defer mu.Unlock()

	var payload map[string]any
	require.NoError(t, json.Unmarshal(received, &payload))
	assert.Equal(t, "job:failed", payload["event"])
	assert.Equal(t, "task creation failed after 4 attempts", payload["error"])
}

func TestWebhookNotifierIgnoresNonTerminalEvents(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	notifier := events.NewWebhookNotifier(server.URL, time.Second, testLogger())

	require.NoError(t, notifier.Notify(context.Background(), events.NewJobEvent(events.KindProgress, "job-1", "")))
	assert.False(t, called)
}

func TestWebhookNotifierReportsNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	notifier := events.NewWebhookNotifier(server.URL, time.Second, testLogger())

	err := notifier.Notify(context.Background(), events.NewJobEvent(events.KindCompleted, "job-1", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestWebhookNotifierReportsConnectionError(t *testing.T) {
	// Point at a closed server.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	notifier := events.NewWebhookNotifier(url, time.Second, testLogger())

	err := notifier.Notify(context.Background(), events.NewJobEvent(events.KindFailed, "job-1", ""))
	require.Error(t, err)
}

func TestNoopNotifier(t *testing.T) {
	assert.NoError(t, events.NoopNotifier{}.Notify(context.Background(), events.NewJobEvent(events.KindCompleted, "job-1", "")))
}
