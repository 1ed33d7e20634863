package mux

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/operino-hub/pkg/common/logger"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newHandler(db Pinger, opts ...func(*Options)) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	return WrapWithMiddleware(Config{
		Log:    logger.Noop(),
		DB:     db,
		Tracer: noop.NewTracerProvider().Tracer("test"),
	}, inner, opts...)
}

func TestHealthEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		db         Pinger
		wantStatus int
	}{
		{"liveness", "/api/v1/health/liveness", fakePinger{err: errors.New("down")}, http.StatusOK},
		{"readiness up", "/api/v1/health/readiness", fakePinger{}, http.StatusOK},
		{"readiness down", "/api/v1/health/readiness", fakePinger{err: errors.New("down")}, http.StatusServiceUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newHandler(tc.db).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestWrappedHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(fakePinger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/operinos/1", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCORS(t *testing.T) {
	h := newHandler(fakePinger{}, WithCORS([]string{"https://portal.example.com"}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/operinos", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://portal.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/operinos/1", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
