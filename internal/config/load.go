package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables use the
// PLANWISE_ prefix with underscores for nesting (e.g. PLANWISE_SERVER_PORT)
// and take precedence over values from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PLANWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults still apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers default values for every setting that has one.
// Database URL and JWT secret have no safe default and must be provided.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("queue.max_attempts", 4)
	v.SetDefault("queue.backoff_base_ms", 1000)
	v.SetDefault("queue.attempt_timeout_seconds", 10)
	v.SetDefault("queue.completed_retention_seconds", 3600)
	v.SetDefault("queue.janitor_interval_seconds", 30)

	v.SetDefault("worker.concurrency", 1)
	v.SetDefault("worker.poll_interval_ms", 500)
	v.SetDefault("worker.drain_timeout_seconds", 30)

	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.timeout_seconds", 5)

	// Bind nested keys explicitly so AutomaticEnv sees them even when the
	// config file is absent.
	for _, key := range []string{
		"server.port", "server.log_level",
		"database.url",
		"auth.jwt_secret",
		"queue.max_attempts", "queue.backoff_base_ms",
		"queue.attempt_timeout_seconds", "queue.completed_retention_seconds",
		"queue.janitor_interval_seconds",
		"worker.concurrency", "worker.poll_interval_ms",
		"worker.drain_timeout_seconds",
		"webhook.url", "webhook.timeout_seconds",
	} {
		// BindEnv only errors on empty input, which cannot happen here.
		_ = v.BindEnv(key)
	}
}
