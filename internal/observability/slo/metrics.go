// Package slo tracks service level indicators of the scheduled runs.
package slo

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets for the polling job.
const (
	// RunSuccessSLO is the target share of runs in which every source completed
	RunSuccessSLO = 0.99

	// RunDurationP95SLO is the target p95 run duration in seconds, below the one-minute cadence
	RunDurationP95SLO = 45.0

	// FreshnessSLO is the maximum age in seconds of the last fully successful run
	FreshnessSLO = 300.0
)

// SLO tracking metrics, updated after every run.
var (
	// SLORunSuccess tracks the success ratio over the tracker window (0-1)
	SLORunSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_run_success_ratio",
			Help: "Share of recent runs in which every source completed, target: 0.99",
		},
	)

	// SLORunDurationP95 tracks the p95 run duration over the tracker window
	SLORunDurationP95 = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_run_duration_p95_seconds",
			Help: "p95 duration of recent runs in seconds, target: 45",
		},
	)

	// SLOFreshness tracks the age of the last fully successful run
	SLOFreshness = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_freshness_seconds",
			Help: "Seconds since the last fully successful run at the time of the latest run, target: 300",
		},
	)
)

type observation struct {
	ok       bool
	duration time.Duration
}

// Tracker keeps the last window run observations and publishes the SLO gauges.
// It is safe for concurrent use.
type Tracker struct {
	mu          sync.Mutex
	window      int
	obs         []observation
	lastSuccess time.Time
}

// NewTracker creates a Tracker over the last window runs (default 60,
// one hour at the default schedule).
func NewTracker(window int) *Tracker {
	if window <= 0 {
		window = 60
	}
	return &Tracker{window: window}
}

// Observe records one run and updates the gauges.
func (t *Tracker) Observe(ok bool, duration time.Duration, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.obs = append(t.obs, observation{ok: ok, duration: duration})
	if len(t.obs) > t.window {
		t.obs = t.obs[len(t.obs)-t.window:]
	}
	if ok {
		t.lastSuccess = now
	}

	SLORunSuccess.Set(t.successRatio())
	SLORunDurationP95.Set(t.p95().Seconds())
	if !t.lastSuccess.IsZero() {
		SLOFreshness.Set(now.Sub(t.lastSuccess).Seconds())
	}
}

// SuccessRatio returns the share of successful runs in the window.
func (t *Tracker) SuccessRatio() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.successRatio()
}

// DurationP95 returns the nearest-rank p95 run duration in the window.
func (t *Tracker) DurationP95() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.p95()
}

func (t *Tracker) successRatio() float64 {
	if len(t.obs) == 0 {
		return 1
	}
	ok := 0
	for _, o := range t.obs {
		if o.ok {
			ok++
		}
	}
	return float64(ok) / float64(len(t.obs))
}

func (t *Tracker) p95() time.Duration {
	if len(t.obs) == 0 {
		return 0
	}
	d := make([]time.Duration, len(t.obs))
	for i, o := range t.obs {
		d[i] = o.duration
	}
	sort.Slice(d, func(i, j int) bool { return d[i] < d[j] })
	// nearest rank: ceil(0.95*n)
	rank := (95*len(d) + 99) / 100
	return d[rank-1]
}
