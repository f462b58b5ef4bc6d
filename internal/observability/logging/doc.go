// Package logging provides structured logging utilities with context propagation.
//
// This package wraps the standard library's log/slog package with helper functions
// for common logging patterns used throughout the worker.
//
// Key features:
//   - JSON and text output formats, with a level adjustable after startup
//   - Run ID and source propagation through context
//   - Credential masking for error strings
//   - A robfig/cron logger adapter
//
// Example usage:
//
//	import "permit-watch/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    slog.SetDefault(logger)
//	}
//
//	func runOnce(ctx context.Context) {
//	    ctx = logging.WithRunID(ctx, uuid.NewString())
//	    logging.FromContext(ctx).Info("run started")
//	}
package logging
