// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Keys are flat snake_case and match the koanf tags below.
// - Errors returned from this package wrap ErrInvalidConfig or ErrLoadConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DatabasePath is the SQLite file holding events and users.
	DatabasePath string `koanf:"database_path"`

	// SeedDir holds the CSV files read by the import command.
	SeedDir string `koanf:"seed_dir"`

	// QueueSize bounds the in-memory notification queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of delivery workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the (user, event) deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// BroadcastConcurrency bounds the goroutines evaluating users per broadcast.
	BroadcastConcurrency int `koanf:"broadcast_concurrency"`

	// BroadcastThreshold is the similarity a user must exceed to be notified.
	BroadcastThreshold float64 `koanf:"broadcast_threshold"`

	// Annealing schedule.
	AnnealInitialTemperature float64 `koanf:"anneal_initial_temperature"`
	AnnealCoolingFactor      float64 `koanf:"anneal_cooling_factor"`
	AnnealMinTemperature     float64 `koanf:"anneal_min_temperature"`
	AnnealSamplesPerLevel    int     `koanf:"anneal_samples_per_level"`

	// RandomSeed fixes prediction randomness when non-zero.
	RandomSeed int64 `koanf:"random_seed"`

	// SMTP relay. An empty host selects the log-only sink.
	SMTPHost     string `koanf:"smtp_host"`
	SMTPPort     int    `koanf:"smtp_port"`
	SMTPUsername string `koanf:"smtp_username"`
	SMTPPassword string `koanf:"smtp_password"`
	SMTPFrom     string `koanf:"smtp_from"`
	SMTPFromName string `koanf:"smtp_from_name"`
	SMTPUseTLS   bool   `koanf:"smtp_use_tls"`

	// Outbound notification rate.
	NotifyRatePerSecond float64 `koanf:"notify_rate_per_second"`
	NotifyBurst         int     `koanf:"notify_burst"`

	// Circuit breaker around the notification sink.
	BreakerFailureThreshold int `koanf:"breaker_failure_threshold"`
	BreakerTimeoutSeconds   int `koanf:"breaker_timeout_seconds"`

	// DeliveryTimeoutSeconds bounds one delivery attempt.
	DeliveryTimeoutSeconds int `koanf:"delivery_timeout_seconds"`

	// RebuildIntervalSeconds refits the vector space periodically while
	// serving. Zero disables it.
	RebuildIntervalSeconds int `koanf:"rebuild_interval_seconds"`
}

// New creates a Config populated with defaults. Context is accepted first to
// satisfy the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                 "info",
		Addr:                     ":9080",
		DatabasePath:             "eventmatch.db",
		SeedDir:                  ".",
		QueueSize:                10_000,
		WorkerCount:              runtime.NumCPU(),
		DedupeSize:               50_000,
		BroadcastConcurrency:     runtime.NumCPU(),
		BroadcastThreshold:       0.1,
		AnnealInitialTemperature: 1.0,
		AnnealCoolingFactor:      0.9,
		AnnealMinTemperature:     1e-4,
		AnnealSamplesPerLevel:    100,
		SMTPPort:                 587,
		SMTPFromName:             "Event Recommendation Team",
		SMTPUseTLS:               true,
		NotifyRatePerSecond:      10,
		NotifyBurst:              5,
		BreakerFailureThreshold:  5,
		BreakerTimeoutSeconds:    30,
		DeliveryTimeoutSeconds:   30,
		RebuildIntervalSeconds:   300,
	}
}

// BreakerTimeout returns the breaker open interval as a duration.
func (c *Config) BreakerTimeout() time.Duration {
	return time.Duration(c.BreakerTimeoutSeconds) * time.Second
}

// DeliveryTimeout returns the per-delivery bound as a duration.
func (c *Config) DeliveryTimeout() time.Duration {
	return time.Duration(c.DeliveryTimeoutSeconds) * time.Second
}

// RebuildInterval returns the periodic rebuild interval; zero means disabled.
func (c *Config) RebuildInterval() time.Duration {
	return time.Duration(c.RebuildIntervalSeconds) * time.Second
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("addr must not be empty: %w", ErrInvalidConfig)
	case c.DatabasePath == "":
		return fmt.Errorf("database_path must not be empty: %w", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("queue_size must be positive: %w", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("worker_count must be positive: %w", ErrInvalidConfig)
	case c.DedupeSize <= 0:
		return fmt.Errorf("dedupe_size must be positive: %w", ErrInvalidConfig)
	case c.BroadcastConcurrency <= 0:
		return fmt.Errorf("broadcast_concurrency must be positive: %w", ErrInvalidConfig)
	case c.BroadcastThreshold < 0 || c.BroadcastThreshold >= 1:
		return fmt.Errorf("broadcast_threshold must be in [0,1): %w", ErrInvalidConfig)
	case c.AnnealInitialTemperature <= 0:
		return fmt.Errorf("anneal_initial_temperature must be positive: %w", ErrInvalidConfig)
	case c.AnnealCoolingFactor <= 0 || c.AnnealCoolingFactor >= 1:
		return fmt.Errorf("anneal_cooling_factor must be in (0,1): %w", ErrInvalidConfig)
	case c.AnnealMinTemperature <= 0 || c.AnnealMinTemperature >= c.AnnealInitialTemperature:
		return fmt.Errorf("anneal_min_temperature must be in (0, initial): %w", ErrInvalidConfig)
	case c.AnnealSamplesPerLevel <= 0:
		return fmt.Errorf("anneal_samples_per_level must be positive: %w", ErrInvalidConfig)
	case c.SMTPHost != "" && (c.SMTPPort <= 0 || c.SMTPPort > 65535):
		return fmt.Errorf("smtp_port out of range: %w", ErrInvalidConfig)
	case c.SMTPHost != "" && c.SMTPFrom == "":
		return fmt.Errorf("smtp_from is required with smtp_host: %w", ErrInvalidConfig)
	case c.NotifyBurst <= 0:
		return fmt.Errorf("notify_burst must be positive: %w", ErrInvalidConfig)
	case c.BreakerFailureThreshold <= 0:
		return fmt.Errorf("breaker_failure_threshold must be positive: %w", ErrInvalidConfig)
	case c.BreakerTimeoutSeconds <= 0:
		return fmt.Errorf("breaker_timeout_seconds must be positive: %w", ErrInvalidConfig)
	case c.DeliveryTimeoutSeconds <= 0:
		return fmt.Errorf("delivery_timeout_seconds must be positive: %w", ErrInvalidConfig)
	case c.RebuildIntervalSeconds < 0:
		return fmt.Errorf("rebuild_interval_seconds must not be negative: %w", ErrInvalidConfig)
	}
	return nil
}
