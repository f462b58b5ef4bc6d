package metrics

import (
	"strconv"
	"time"
)

// SourceRun carries the counters of one source pipeline run.
type SourceRun struct {
	Extracted  int
	Inserted   int
	Duplicates int
	Notified   int
}

// RecordSourceRun records the outcome of one source pipeline run.
// Status should be "success", "failure", or "panic".
func RecordSourceRun(source, status string, duration time.Duration, run SourceRun) {
	SourceRunsTotal.WithLabelValues(source, status).Inc()
	SourceRunDuration.WithLabelValues(source).Observe(duration.Seconds())

	if run.Extracted > 0 {
		RecordsExtractedTotal.WithLabelValues(source).Add(float64(run.Extracted))
	}
	if run.Inserted > 0 {
		RecordsInsertedTotal.WithLabelValues(source).Add(float64(run.Inserted))
	}
	if run.Duplicates > 0 {
		RecordsDuplicateTotal.WithLabelValues(source).Add(float64(run.Duplicates))
	}
	if run.Notified > 0 {
		RecordsNotifiedTotal.WithLabelValues(source).Add(float64(run.Notified))
	}
}

// RecordStageFailure records one per-record failure in a pipeline stage.
func RecordStageFailure(source, stage string) {
	StageFailuresTotal.WithLabelValues(source, stage).Inc()
}

// RecordUpstreamRequest records one outbound HTTP request.
// A status of 0 means the request failed before a response arrived.
func RecordUpstreamRequest(host, method string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	UpstreamRequestsTotal.WithLabelValues(host, method, label).Inc()
	UpstreamRequestDuration.WithLabelValues(host, method).Observe(duration.Seconds())
}
