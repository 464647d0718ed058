package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// webhookPayload is the JSON body POSTed to the configured webhook URL.
type webhookPayload struct {
	Event     string    `json:"event"`
	JobID     string    `json:"jobId"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WebhookNotifier delivers terminal job events as HTTP POSTs.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewWebhookNotifier creates a WebhookNotifier for the given URL.
// A zero timeout defaults to 5 seconds.
func NewWebhookNotifier(url string, timeout time.Duration, logger *slog.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger.With("component", "webhook_notifier"),
	}
}

// Notify POSTs the event to the webhook URL. Non-terminal events are
// ignored. A non-2xx response counts as a delivery failure.
func (n *WebhookNotifier) Notify(ctx context.Context, event JobEvent) error {
	if !event.Kind.Terminal() {
		return nil
	}

	payload := webhookPayload{
		Event:     "job:" + string(event.Kind),
		JobID:     event.JobID,
		Result:    event.Result,
		Error:     event.Error,
		Timestamp: event.Timestamp,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			n.logger.Warn("failed to close webhook response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook receiver returned status %d", resp.StatusCode)
	}

	n.logger.Debug("webhook delivered",
		"event", payload.Event,
		"job_id", event.JobID,
		"status", resp.StatusCode)
	return nil
}

// NoopNotifier is used when no webhook URL is configured.
type NoopNotifier struct{}

// Notify discards the event.
func (NoopNotifier) Notify(ctx context.Context, event JobEvent) error {
	return nil
}
