// Package resilience groups the failure handling shared by the scrapers,
// the notifier and the Postgres store.
//
// retry re-runs transient failures with bounded exponential backoff, and
// circuitbreaker stops calling a dependency that keeps failing. Scrapers
// nest them: every retry attempt passes through the source's breaker, so
// an open breaker ends the retry loop with a non-retryable error.
package resilience
