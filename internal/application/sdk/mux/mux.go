package mux

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/operino-hub/internal/application/sdk/mid"
	"github.com/ahrav/operino-hub/pkg/common/logger"
)

// Options represent optional parameters.
type Options struct {
	corsOrigin []string
}

// WithCORS provides configuration options for CORS.
func WithCORS(origins []string) func(opts *Options) {
	return func(opts *Options) {
		opts.corsOrigin = origins
	}
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Build      string
	Log        *logger.Logger
	DB         Pinger
	Tracer     trace.Tracer
	APIMetrics mid.APIMetrics
}

// healthHandler provides health check endpoints for liveness and readiness checks.
type healthHandler struct{ db Pinger }

// newHealthHandler creates a new health handler backed by db.
func newHealthHandler(db Pinger) *healthHandler { return &healthHandler{db: db} }

// Liveness returns a simple handler for the liveness check.
// The liveness check is used to know when to restart a container.
func (h *healthHandler) Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"up"}`))
	}
}

// Readiness returns a handler for the readiness check.
// The readiness check is used to know when a container is ready to start accepting traffic.
// It checks if the database connection is healthy.
func (h *healthHandler) Readiness() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		err := h.db.Ping(ctx)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"down","reason":"database unavailable"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"up"}`))
	}
}

// WrapWithMiddleware applies the standard middleware stack to an existing HTTP
// handler and mounts the liveness and readiness checks beside it.
func WrapWithMiddleware(cfg Config, handler http.Handler, options ...func(opts *Options)) http.Handler {
	var opts Options
	for _, option := range options {
		option(&opts)
	}

	// Create a middleware chain using our mid package.
	chain := mid.GetMiddlewareChain(cfg.Log, cfg.Tracer, cfg.APIMetrics)

	if len(opts.corsOrigin) > 0 {
		chain = append(chain, func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodOptions {
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
					w.Header().Set("Access-Control-Max-Age", "86400")

					origin := r.Header.Get("Origin")
					for _, host := range opts.corsOrigin {
						if host == "*" || host == origin {
							w.Header().Set("Access-Control-Allow-Origin", origin)
							break
						}
					}
					w.WriteHeader(http.StatusOK)
					return
				}

				// Handle regular requests.
				origin := r.Header.Get("Origin")
				for _, host := range opts.corsOrigin {
					if host == "*" || host == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						break
					}
				}

				next.ServeHTTP(w, r)
			})
		})
	}

	wrappedHandler := mid.Wrap(handler, chain...)

	// Create a mux to integrate health endpoints with the middleware-wrapped handler.
	finalMux := http.NewServeMux()

	// Register health check endpoints directly on the mux WITHOUT middleware.
	healthHandler := newHealthHandler(cfg.DB)
	finalMux.HandleFunc("/api/v1/health/liveness", healthHandler.Liveness())
	finalMux.HandleFunc("/api/v1/health/readiness", healthHandler.Readiness())

	// Register the middleware-wrapped handler for all other paths.
	finalMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Skip health endpoints to prevent double handling
		if r.URL.Path == "/api/v1/health/liveness" || r.URL.Path == "/api/v1/health/readiness" {
			return
		}
		wrappedHandler.ServeHTTP(w, r)
	})

	return finalMux
}
