// Package config provides fail-open environment loading: a value that does
// not parse or validate is replaced by its default and reported, never
// returned as an error.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigLoadResult is the outcome of loading one value.
//
// Value holds the environment value when it parsed and validated, otherwise
// the default. Warnings carries one message per fallback.
type ConfigLoadResult struct {
	Value           interface{}
	Warnings        []string
	FallbackApplied bool
}

// LoadEnvString returns the variable or the default when unset or empty.
// No validation is performed.
func LoadEnvString(envKey, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(envKey)); value != "" {
		return value
	}
	return defaultValue
}

// LoadEnvWithFallback loads a string and validates it. An unset variable
// yields the default without a warning.
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) ConfigLoadResult {
	return load(envKey, defaultValue, func(s string) (string, error) { return s, nil }, validator,
		func(v string) string { return v })
}

// LoadEnvDuration loads a Go duration string ("50s", "2m") and validates it.
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) ConfigLoadResult {
	return load(envKey, defaultValue, time.ParseDuration, validator, time.Duration.String)
}

// LoadEnvInt loads a base-10 integer and validates it.
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) ConfigLoadResult {
	parse := func(s string) (int, error) {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid integer format")
		}
		return v, nil
	}
	return load(envKey, defaultValue, parse, validator, strconv.Itoa)
}

// LoadEnvBool loads a boolean in any form strconv.ParseBool accepts.
func LoadEnvBool(envKey string, defaultValue bool) ConfigLoadResult {
	parse := func(s string) (bool, error) {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return false, fmt.Errorf("invalid boolean format, expected 'true' or 'false'")
		}
		return v, nil
	}
	return load(envKey, defaultValue, parse, nil, strconv.FormatBool)
}

func load[T any](envKey string, defaultValue T, parse func(string) (T, error), validator func(T) error, format func(T) string) ConfigLoadResult {
	raw := strings.TrimSpace(os.Getenv(envKey))
	if raw == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	fallback := func(err error) ConfigLoadResult {
		return ConfigLoadResult{
			Value: defaultValue,
			Warnings: []string{fmt.Sprintf("Invalid %s='%s': %v, falling back to default '%s'",
				envKey, raw, err, format(defaultValue))},
			FallbackApplied: true,
		}
	}

	v, err := parse(raw)
	if err != nil {
		return fallback(err)
	}
	if validator != nil {
		if err := validator(v); err != nil {
			return fallback(err)
		}
	}
	return ConfigLoadResult{Value: v}
}

// Reporter turns fallbacks into warnings and metrics for one component.
// Secret values must not be loaded through a validating loader because
// warnings echo the rejected value.
type Reporter struct {
	logger   *slog.Logger
	metrics  *ConfigMetrics
	fallback bool
}

// NewReporter creates a Reporter. metrics may be nil.
func NewReporter(logger *slog.Logger, metrics *ConfigMetrics) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{logger: logger, metrics: metrics}
}

// Track logs and counts a fallback for field and returns result.Value.
func (r *Reporter) Track(field string, result ConfigLoadResult) interface{} {
	if !result.FallbackApplied {
		return result.Value
	}
	r.fallback = true
	if r.metrics != nil {
		r.metrics.Fallback(field)
	}
	for _, warning := range result.Warnings {
		r.logger.Warn("Configuration fallback applied",
			slog.String("field", field),
			slog.String("warning", warning))
	}
	return result.Value
}

// Finish publishes the fallback gauge and the load timestamp.
func (r *Reporter) Finish() {
	if r.metrics == nil {
		return
	}
	r.metrics.Loaded(r.fallback)
}

// FallbackApplied reports whether any tracked field fell back.
func (r *Reporter) FallbackApplied() bool { return r.fallback }
