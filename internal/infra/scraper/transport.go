package scraper

import (
	"net/http"
	"time"

	"permit-watch/internal/observability/metrics"
)

// NewHTTPClient returns a client whose requests are recorded in the
// upstream request metrics. All extractors share it; the portal wraps its
// transport in a per-run client with a cookie jar.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &instrumentedTransport{next: http.DefaultTransport},
	}
}

type instrumentedTransport struct {
	next http.RoundTripper
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	metrics.RecordUpstreamRequest(req.URL.Host, req.Method, status, time.Since(start))
	return resp, err
}
