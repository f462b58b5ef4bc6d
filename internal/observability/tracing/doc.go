// Package tracing provides OpenTelemetry tracing integration.
//
// The worker creates one span per scheduled run, per source pipeline, and
// per pipeline stage; extractors add spans for each upstream request.
// Without a collector, finished spans can be written to the log with
// LogExporter.
//
// Example usage:
//
//	import "permit-watch/internal/observability/tracing"
//
//	func main() {
//	    shutdown := tracing.Init("permit-watch", 1.0, tracing.NewLogExporter(nil))
//	    defer shutdown(context.Background())
//	}
package tracing
