package otel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestEndpointExcluder(t *testing.T) {
	sampler := newEndpointExcluder(map[string]struct{}{"/api/v1/health/liveness": {}}, 1.0)

	traceID := trace.TraceID{0x01}

	res := sampler.ShouldSample(sdktrace.SamplingParameters{TraceID: traceID, Name: "/api/v1/health/liveness"})
	assert.Equal(t, sdktrace.Drop, res.Decision)

	res = sampler.ShouldSample(sdktrace.SamplingParameters{TraceID: traceID, Name: "/api/v1/operinos"})
	assert.Equal(t, sdktrace.RecordAndSample, res.Decision)
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Equal(t, zeroTraceID, GetTraceID(t.Context()))
}
