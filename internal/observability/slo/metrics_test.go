package slo

import (
	"testing"
	"time"

	io_prometheus_client "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g interface {
	Write(*io_prometheus_client.Metric) error
}) float64 {
	t.Helper()
	metric := &io_prometheus_client.Metric{}
	if err := g.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.GetGauge().GetValue()
}

func TestSLOConstants(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		expected float64
	}{
		{"RunSuccessSLO", RunSuccessSLO, 0.99},
		{"RunDurationP95SLO", RunDurationP95SLO, 45.0},
		{"FreshnessSLO", FreshnessSLO, 300.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, tt.value, tt.expected)
			}
		})
	}

	if RunDurationP95SLO >= 60 {
		t.Errorf("run duration target must stay below the one-minute cadence")
	}
}

func TestTracker_SuccessRatio(t *testing.T) {
	tr := NewTracker(4)
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	if got := tr.SuccessRatio(); got != 1 {
		t.Errorf("empty tracker ratio = %v, want 1", got)
	}

	tr.Observe(true, time.Second, now)
	tr.Observe(false, time.Second, now.Add(time.Minute))
	tr.Observe(true, time.Second, now.Add(2*time.Minute))
	tr.Observe(false, time.Second, now.Add(3*time.Minute))

	if got := tr.SuccessRatio(); got != 0.5 {
		t.Errorf("ratio = %v, want 0.5", got)
	}

	// Window slides: the oldest success drops out.
	tr.Observe(false, time.Second, now.Add(4*time.Minute))
	if got := tr.SuccessRatio(); got != 0.25 {
		t.Errorf("ratio after slide = %v, want 0.25", got)
	}
	if got := gaugeValue(t, SLORunSuccess); got != 0.25 {
		t.Errorf("SLORunSuccess = %v, want 0.25", got)
	}
}

func TestTracker_DurationP95(t *testing.T) {
	tr := NewTracker(100)
	now := time.Now()
	for i := 1; i <= 20; i++ {
		tr.Observe(true, time.Duration(i)*time.Second, now)
	}

	// nearest rank of 20 samples at p95 is the 19th
	if got := tr.DurationP95(); got != 19*time.Second {
		t.Errorf("p95 = %v, want 19s", got)
	}
	if got := gaugeValue(t, SLORunDurationP95); got != 19 {
		t.Errorf("SLORunDurationP95 = %v, want 19", got)
	}
}

func TestTracker_Freshness(t *testing.T) {
	tr := NewTracker(10)
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	tr.Observe(true, time.Second, now)
	tr.Observe(false, time.Second, now.Add(3*time.Minute))

	if got := gaugeValue(t, SLOFreshness); got != 180 {
		t.Errorf("SLOFreshness = %v, want 180", got)
	}
}

func TestNewTracker_DefaultWindow(t *testing.T) {
	if got := NewTracker(0).window; got != 60 {
		t.Errorf("window = %d, want 60", got)
	}
}
