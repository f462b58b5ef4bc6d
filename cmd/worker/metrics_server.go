package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"permit-watch/internal/observability/logging"
	"permit-watch/internal/resilience/circuitbreaker"
	"permit-watch/internal/usecase/notify"
)

// Breaker kinds reported by /health/breakers.
const (
	breakerKindChannel = "channel"
	breakerKindStore   = "store"
)

type breakerStatus struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Open  bool   `json:"open"`
	State string `json:"state"`
}

type breakersResponse struct {
	Healthy  bool            `json:"healthy"`
	Breakers []breakerStatus `json:"breakers"`
}

// breakerSource lists breaker states at request time.
type breakerSource func() []breakerStatus

// collectBreakers reports every notification channel and, for Postgres,
// the store breaker. Either argument may be nil.
func collectBreakers(notifyService notify.Service, store *circuitbreaker.DBCircuitBreaker) breakerSource {
	return func() []breakerStatus {
		var out []breakerStatus
		if notifyService != nil {
			for _, ch := range notifyService.GetChannelHealth() {
				out = append(out, breakerStatus{
					Name:  ch.Name,
					Kind:  breakerKindChannel,
					Open:  ch.CircuitBreakerOpen,
					State: ch.State,
				})
			}
		}
		if store != nil {
			out = append(out, breakerStatus{
				Name:  "store",
				Kind:  breakerKindStore,
				Open:  store.IsOpen(),
				State: store.State().String(),
			})
		}
		return out
	}
}

// startMetricsServer serves metricsMux on port until ctx is cancelled.
func startMetricsServer(ctx context.Context, logger *slog.Logger, port int, breakers breakerSource) *http.Server {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      metricsMux(breakers),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go serveUntilDone(ctx, logger.With(slog.String("server", "metrics")), server)
	return server
}

func serveUntilDone(ctx context.Context, logger *slog.Logger, server *http.Server) {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.String("error", logging.SanitizeError(err)))
		}
		return
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
		return
	}
	logger.Info("server stopped")
}

// metricsMux serves /metrics, a liveness probe on /health, and
// /health/breakers, which turns 503 while any breaker is open.
func metricsMux(breakers breakerSource) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/health/breakers", func(w http.ResponseWriter, r *http.Request) {
		if breakers == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "breakers not initialized"})
			return
		}

		resp := breakersResponse{Healthy: true, Breakers: breakers()}
		for _, b := range resp.Breakers {
			if b.Open {
				resp.Healthy = false
			}
		}
		code := http.StatusOK
		if !resp.Healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
