package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// LoadEnvString
// ============================================================================

func TestLoadEnvString(t *testing.T) {
	t.Setenv("TEST_STRING", "  custom_value ")
	assert.Equal(t, "custom_value", LoadEnvString("TEST_STRING", "default_value"))

	t.Setenv("TEST_STRING", "")
	assert.Equal(t, "default_value", LoadEnvString("TEST_STRING", "default_value"))
}

// ============================================================================
// LoadEnvWithFallback
// ============================================================================

func TestLoadEnvWithFallback_WithValidValue(t *testing.T) {
	t.Setenv("TEST_CRON", "*/5 * * * *")

	result := LoadEnvWithFallback("TEST_CRON", "* * * * *", ValidateCronSchedule)

	assert.Equal(t, "*/5 * * * *", result.Value)
	assert.Empty(t, result.Warnings)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvWithFallback_WithoutValue(t *testing.T) {
	result := LoadEnvWithFallback("TEST_CRON_UNSET", "* * * * *", ValidateCronSchedule)

	assert.Equal(t, "* * * * *", result.Value)
	assert.Empty(t, result.Warnings)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvWithFallback_InvalidValue(t *testing.T) {
	t.Setenv("TEST_CRON", "every minute")

	result := LoadEnvWithFallback("TEST_CRON", "* * * * *", ValidateCronSchedule)

	assert.Equal(t, "* * * * *", result.Value)
	assert.True(t, result.FallbackApplied)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "TEST_CRON='every minute'")
	assert.Contains(t, result.Warnings[0], "falling back to default '* * * * *'")
}

func TestLoadEnvWithFallback_NilValidator(t *testing.T) {
	t.Setenv("TEST_ANY", "anything")

	result := LoadEnvWithFallback("TEST_ANY", "x", nil)

	assert.Equal(t, "anything", result.Value)
	assert.False(t, result.FallbackApplied)
}

// ============================================================================
// LoadEnvDuration / LoadEnvInt / LoadEnvBool
// ============================================================================

func TestLoadEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		want     time.Duration
		fallback bool
	}{
		{"valid", "45s", 45 * time.Second, false},
		{"unset", "", 50 * time.Second, false},
		{"unparseable", "soon", 50 * time.Second, true},
		{"out of range", "2h", 50 * time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_TIMEOUT", tt.value)

			result := LoadEnvDuration("TEST_TIMEOUT", 50*time.Second, func(d time.Duration) error {
				return ValidateDuration(d, time.Second, 59*time.Second)
			})

			assert.Equal(t, tt.want, result.Value)
			assert.Equal(t, tt.fallback, result.FallbackApplied)
		})
	}
}

func TestLoadEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		want     int
		fallback bool
	}{
		{"valid", "8", 8, false},
		{"unset", "", 4, false},
		{"not a number", "four", 4, true},
		{"trailing garbage", "8x", 4, true},
		{"out of range", "0", 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_PARALLELISM", tt.value)

			result := LoadEnvInt("TEST_PARALLELISM", 4, func(v int) error {
				return ValidateIntRange(v, 1, 32)
			})

			assert.Equal(t, tt.want, result.Value)
			assert.Equal(t, tt.fallback, result.FallbackApplied)
		})
	}
}

func TestLoadEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	assert.Equal(t, true, LoadEnvBool("TEST_BOOL", false).Value)

	t.Setenv("TEST_BOOL", "yes")
	result := LoadEnvBool("TEST_BOOL", false)
	assert.Equal(t, false, result.Value)
	assert.True(t, result.FallbackApplied)
}

// ============================================================================
// Reporter
// ============================================================================

func TestReporter_TrackAndFinish(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	metrics := NewConfigMetrics("test_reporter")
	r := NewReporter(logger, metrics)

	t.Setenv("TEST_TZ", "Mars/Olympus")
	tz := r.Track("timezone", LoadEnvWithFallback("TEST_TZ", "UTC", ValidateTimezone)).(string)
	ok := r.Track("cron_schedule", LoadEnvWithFallback("TEST_CRON_UNSET", "* * * * *", ValidateCronSchedule)).(string)
	r.Finish()

	assert.Equal(t, "UTC", tz)
	assert.Equal(t, "* * * * *", ok)
	assert.True(t, r.FallbackApplied())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.fallbacks.WithLabelValues("timezone")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.fallbacks.WithLabelValues("cron_schedule")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.degraded))
	assert.True(t, strings.Contains(buf.String(), "Configuration fallback applied"))
}

func TestReporter_NilMetrics(t *testing.T) {
	r := NewReporter(nil, nil)

	t.Setenv("TEST_INT", "x")
	v := r.Track("parallelism", LoadEnvInt("TEST_INT", 4, nil)).(int)
	r.Finish()

	assert.Equal(t, 4, v)
	assert.True(t, r.FallbackApplied())
}
