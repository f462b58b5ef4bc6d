package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"permit-watch/internal/pkg/config"
)

// WorkerConfig controls scheduling of the polling job.
type WorkerConfig struct {
	// CronSchedule is a five-field cron expression. Default: every minute.
	CronSchedule string

	// Timezone is the IANA zone the schedule is evaluated in.
	Timezone string

	// RunTimeout bounds one run over all sources. It should stay below the
	// schedule interval so ticks do not pile up behind the overlap guard.
	RunTimeout time.Duration

	// Parallelism is the per-stage record concurrency inside a pipeline.
	Parallelism int

	// HealthPort serves /health and /health/ready.
	HealthPort int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		CronSchedule: "* * * * *",
		Timezone:     "Europe/Kyiv",
		RunTimeout:   50 * time.Second,
		Parallelism:  4,
		HealthPort:   9091,
	}
}

const (
	minRunTimeout  = 5 * time.Second
	maxRunTimeout  = 1 * time.Hour
	maxParallelism = 32
)

// Validate checks every field and joins all failures.
func (c *WorkerConfig) Validate() error {
	checks := []struct {
		field string
		err   error
	}{
		{"cron schedule", config.ValidateCronSchedule(c.CronSchedule)},
		{"timezone", config.ValidateTimezone(c.Timezone)},
		{"run timeout", config.ValidateDuration(c.RunTimeout, minRunTimeout, maxRunTimeout)},
		{"parallelism", config.ValidateIntRange(c.Parallelism, 1, maxParallelism)},
		{"health port", config.ValidateIntRange(c.HealthPort, 1024, 65535)},
	}

	var errs []error
	for _, check := range checks {
		if check.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", check.field, check.err))
		}
	}
	return errors.Join(errs...)
}

// LoadConfigFromEnv loads the worker configuration with fail-open
// semantics: an invalid value falls back to its default, is logged and is
// counted in metrics. The error is always nil.
//
// Environment variables:
//   - CRON_SCHEDULE (default "* * * * *")
//   - WORKER_TIMEZONE (default "Europe/Kyiv")
//   - RUN_TIMEOUT (default 50s, 5s..1h)
//   - PIPELINE_PARALLELISM (default 4, 1..32)
//   - WORKER_HEALTH_PORT (default 9091)
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()

	var cm *config.ConfigMetrics
	if metrics != nil {
		cm = metrics.ConfigMetrics
	}
	r := config.NewReporter(logger, cm)

	cfg.CronSchedule = r.Track("cron_schedule",
		config.LoadEnvWithFallback("CRON_SCHEDULE", cfg.CronSchedule, config.ValidateCronSchedule)).(string)

	cfg.Timezone = r.Track("timezone",
		config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)).(string)

	cfg.RunTimeout = r.Track("run_timeout",
		config.LoadEnvDuration("RUN_TIMEOUT", cfg.RunTimeout, func(d time.Duration) error {
			return config.ValidateDuration(d, minRunTimeout, maxRunTimeout)
		})).(time.Duration)

	cfg.Parallelism = r.Track("parallelism",
		config.LoadEnvInt("PIPELINE_PARALLELISM", cfg.Parallelism, func(v int) error {
			return config.ValidateIntRange(v, 1, maxParallelism)
		})).(int)

	cfg.HealthPort = r.Track("health_port",
		config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
			return config.ValidateIntRange(v, 1024, 65535)
		})).(int)

	r.Finish()
	return &cfg, nil
}

// Location resolves Timezone, falling back to UTC.
func (c *WorkerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
