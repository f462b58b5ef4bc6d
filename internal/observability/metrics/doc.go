// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes the worker's domain metrics:
//   - Per-source pipeline counters (extracted, inserted, duplicate, notified)
//   - Per-stage failure counters
//   - Outbound HTTP metrics for the scraped sites
//   - Store operation durations
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "permit-watch/internal/observability/metrics"
//
//	start := time.Now()
//	// ... run the feed pipeline ...
//	metrics.RecordSourceRun("feed", "success", time.Since(start), metrics.SourceRun{Extracted: 12, Inserted: 1})
package metrics
