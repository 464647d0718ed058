package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue"    validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains authentication settings for the protected routes.
// Token issuance lives outside this service; only verification happens here.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// QueueConfig contains work queue behavior settings.
type QueueConfig struct {
	// MaxAttempts is the total number of tries a job gets: one initial
	// attempt plus MaxAttempts-1 retries.
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,gte=1,lte=10"`

	// BackoffBaseMs is the delay before the first retry; each subsequent
	// retry doubles it.
	BackoffBaseMs int `mapstructure:"backoff_base_ms" validate:"required,gte=100"`

	// AttemptTimeoutSeconds bounds a single execution attempt. Values above
	// 30 are clamped to 30 at queue construction.
	AttemptTimeoutSeconds int `mapstructure:"attempt_timeout_seconds" validate:"required,gte=1,lte=30"`

	// CompletedRetentionSeconds is how long completed jobs are kept before
	// the janitor purges them. Failed jobs are never purged.
	CompletedRetentionSeconds int `mapstructure:"completed_retention_seconds" validate:"required,gte=60"`

	// JanitorIntervalSeconds is how often the queue checks for purgeable
	// completed jobs and expired leases.
	JanitorIntervalSeconds int `mapstructure:"janitor_interval_seconds" validate:"required,gte=1"`
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	// Concurrency is the number of jobs the worker processes simultaneously.
	Concurrency int `mapstructure:"concurrency" validate:"required,gte=1,lte=64"`

	// PollIntervalMs is how long a worker loop sleeps when no job is available.
	PollIntervalMs int `mapstructure:"poll_interval_ms" validate:"required,gte=50"`

	// DrainTimeoutSeconds is how long Close waits for in-flight jobs to
	// finish before forcing termination.
	DrainTimeoutSeconds int `mapstructure:"drain_timeout_seconds" validate:"required,gte=1"`
}

// WebhookConfig contains outbound webhook notification settings.
// An empty URL disables webhook delivery entirely.
type WebhookConfig struct {
	URL            string `mapstructure:"url"             validate:"omitempty,url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"omitempty,gte=1,lte=30"`
}

// AttemptTimeout returns the configured per-attempt timeout as a duration.
func (c QueueConfig) AttemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutSeconds) * time.Second
}

// BackoffBase returns the configured backoff base as a duration.
func (c QueueConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMs) * time.Millisecond
}

// CompletedRetention returns the completed-job retention age as a duration.
func (c QueueConfig) CompletedRetention() time.Duration {
	return time.Duration(c.CompletedRetentionSeconds) * time.Second
}

// JanitorInterval returns the janitor sweep interval as a duration.
func (c QueueConfig) JanitorInterval() time.Duration {
	return time.Duration(c.JanitorIntervalSeconds) * time.Second
}

// PollInterval returns the worker poll interval as a duration.
func (c WorkerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// DrainTimeout returns the worker drain window as a duration.
func (c WorkerConfig) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutSeconds) * time.Second
}

// Timeout returns the webhook delivery timeout as a duration.
func (c WebhookConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
