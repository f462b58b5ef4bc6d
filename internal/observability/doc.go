// Package observability groups the worker's telemetry:
//   - logging: slog JSON logger, run-scoped context loggers, secret masking
//   - metrics: Prometheus counters and histograms per source and stage
//   - tracing: OpenTelemetry spans per run, source and stage
//   - slo: run success ratio, p95 duration and freshness gauges
package observability
