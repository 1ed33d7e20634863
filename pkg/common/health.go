// Package common provides shared utilities for the system.
package common

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/ahrav/operino-hub/pkg/common/logger"
)

// HealthServer implements health check endpoints for Kubernetes liveness and readiness checks.
// It is used by processes that do not expose the public API, such as a
// standalone provisioning worker.
type HealthServer struct {
	ready  *atomic.Bool // Indicates if the service is ready to receive traffic
	server *http.Server
	log    *logger.Logger
}

// NewHealthServer creates a health check server bound to addr. The ready flag
// controls the readiness check: while false, readiness answers 503.
// Call Start to begin serving.
func NewHealthServer(addr string, ready *atomic.Bool, log *logger.Logger) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		ready:  ready,
		server: &http.Server{Addr: addr, Handler: mux},
		log:    log.Named("health_server"),
	}

	mux.HandleFunc("/v1/readiness", hs.readinessHandler)
	mux.HandleFunc("/v1/health", hs.healthHandler)

	return hs
}

// Start serves the health checks in a background goroutine.
func (h *HealthServer) Start(ctx context.Context) {
	go func() {
		h.log.Info(ctx, "health server listening", "addr", h.server.Addr)
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.log.Error(ctx, "health server error", "error", err)
		}
	}()
}

// readinessHandler responds to readiness check requests based on the ready flag.
// Returns 503 if not ready, 200 if ready.
func (h *HealthServer) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		http.Error(w, "Not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// healthHandler responds to liveness check requests.
// Always returns 200 OK as long as the server is running.
func (h *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Handler exposes the health routes, mainly for tests.
func (h *HealthServer) Handler() http.Handler { return h.server.Handler }

// Shutdown stops the server.
func (h *HealthServer) Shutdown(ctx context.Context) error { return h.server.Shutdown(ctx) }
