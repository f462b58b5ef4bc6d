// Package scraper extracts candidate records from the three upstream sources:
// the RSS feed, the declarations listing and the login-gated document portal.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"golang.org/x/text/encoding/htmlindex"

	"permit-watch/internal/domain/entity"
	"permit-watch/internal/resilience/circuitbreaker"
	"permit-watch/internal/resilience/retry"
)

const (
	maxBodySize = 10 * 1024 * 1024 // 10MB
	userAgent   = "PermitWatchBot/1.0"
)

var tracer = otel.Tracer("permit-watch/scraper")

// resilientCall runs fn through the circuit breaker with bounded retry and
// normalises the final error into the domain taxonomy.
func resilientCall[T any](ctx context.Context, cb *circuitbreaker.CircuitBreaker, cfg retry.Config, target string, fn func() (T, error)) (T, error) {
	var out T

	retryErr := retry.WithBackoff(ctx, cfg, func() error {
		res, err := circuitbreaker.Call(cb, fn)
		if circuitbreaker.IsRejected(err) {
			slog.Warn("circuit breaker open, request rejected",
				slog.String("service", cb.Name()),
				slog.String("url", target),
				slog.String("state", cb.State().String()))
		}
		if err != nil {
			return err
		}
		out = res
		return nil
	})

	if retryErr != nil {
		var zero T
		return zero, classify(retryErr)
	}
	return out, nil
}

// classify wraps err with ErrFetch unless it already carries a domain sentinel.
func classify(err error) error {
	if errors.Is(err, entity.ErrParse) || errors.Is(err, entity.ErrAuth) || errors.Is(err, entity.ErrFetch) {
		return err
	}
	return fmt.Errorf("%w: %w", entity.ErrFetch, err)
}

// readBody reads at most maxBodySize bytes and rejects non-2xx statuses
// with a retry.HTTPError so 5xx and 429 are retried.
func readBody(resp *http.Response) ([]byte, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status: %s", resp.Status),
			RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// decodeCharset converts body from the named legacy encoding to UTF-8.
// An empty name or any UTF-8 alias returns body unchanged.
func decodeCharset(body []byte, name string) ([]byte, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" || name == "utf-8" || name == "utf8" {
		return body, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", name, err)
	}
	out, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(body)))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return out, nil
}

var xmlEncodingAttr = regexp.MustCompile(`(?i)(<\?xml[^>]*encoding\s*=\s*["'])[^"']*(["'])`)

// relabelUTF8 rewrites the encoding declared in the XML prolog after the
// body has already been transcoded, so the parser does not decode it twice.
func relabelUTF8(body []byte) []byte {
	return xmlEncodingAttr.ReplaceAll(body, []byte("${1}UTF-8${2}"))
}

// cleanText collapses runs of whitespace and trims the result.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
