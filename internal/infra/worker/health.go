package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthServer serves the worker probes:
//   - GET /health: liveness, always 200
//   - GET /health/ready: 200 while ready and not stale, 503 otherwise
//   - GET /health/run: the outcome of the most recent run
//
// The worker is stale when staleAfter is set and no run has succeeded for
// that long, counting from the later of SetReady(true) and the last
// successful run. A portal that keeps rejecting the login does not make
// the worker stale on its own because partial runs still count.
type HealthServer struct {
	addr       string
	logger     *slog.Logger
	staleAfter time.Duration
	now        func() time.Time

	ready       atomic.Bool
	readySince  atomic.Int64 // unix nanos
	lastSuccess atomic.Int64 // unix nanos, zero until the first successful run
	lastRun     atomic.Pointer[RunStatus]
}

// RunStatus is the JSON body of /health/run.
type RunStatus struct {
	RunID         string    `json:"run_id"`
	OK            bool      `json:"ok"`
	Sources       int       `json:"sources"`
	FailedSources []string  `json:"failed_sources,omitempty"`
	Notified      int       `json:"notified"`
	FinishedAt    time.Time `json:"finished_at"`
	DurationMS    int64     `json:"duration_ms"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// HealthOption configures a HealthServer.
type HealthOption func(*HealthServer)

// WithStaleAfter makes readiness fail once no run has succeeded for d.
func WithStaleAfter(d time.Duration) HealthOption {
	return func(h *HealthServer) { h.staleAfter = d }
}

func NewHealthServer(addr string, logger *slog.Logger, opts ...HealthOption) *HealthServer {
	h := &HealthServer{addr: addr, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handler returns the probe routes.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	})
	mux.HandleFunc("/health/ready", h.handleReadiness)
	mux.HandleFunc("/health/run", h.handleLastRun)
	return mux
}

// Start serves until ctx is cancelled, then shuts down within 5 seconds
// and returns http.ErrServerClosed.
func (h *HealthServer) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         h.addr,
		Handler:      h.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("health server starting", slog.String("addr", h.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("health server failed", slog.String("error", err.Error()))
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		h.logger.Error("health server shutdown failed", slog.String("error", err.Error()))
		return err
	}
	h.logger.Info("health server stopped")
	return http.ErrServerClosed
}

func (h *HealthServer) SetReady(ready bool) {
	if ready && !h.ready.Load() {
		h.readySince.Store(h.now().UnixNano())
	}
	h.ready.Store(ready)
	h.logger.Info("health server readiness changed", slog.Bool("ready", ready))
}

// ObserveRun replaces the status reported by /health/run. For staleness a
// run succeeds when at least one of its sources completed.
func (h *HealthServer) ObserveRun(status RunStatus) {
	h.lastRun.Store(&status)
	if status.OK || len(status.FailedSources) < status.Sources {
		h.lastSuccess.Store(status.FinishedAt.UnixNano())
	}
}

func (h *HealthServer) stale() bool {
	if h.staleAfter <= 0 {
		return false
	}
	since := max(h.readySince.Load(), h.lastSuccess.Load())
	return h.now().Sub(time.Unix(0, since)) > h.staleAfter
}

func (h *HealthServer) handleReadiness(w http.ResponseWriter, r *http.Request) {
	switch {
	case !h.ready.Load():
		h.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "not ready"})
	case h.stale():
		h.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "stale"})
	default:
		h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

func (h *HealthServer) handleLastRun(w http.ResponseWriter, r *http.Request) {
	last := h.lastRun.Load()
	if last == nil {
		h.writeJSON(w, http.StatusNotFound, healthResponse{Status: "no run yet"})
		return
	}
	h.writeJSON(w, http.StatusOK, last)
}

func (h *HealthServer) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode health response", slog.String("error", err.Error()))
	}
}
