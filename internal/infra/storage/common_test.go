package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

var errMissing = errors.New("operino not found")

func TestExecuteAndTrace(t *testing.T) {
	tests := []struct {
		name       string
		opErr      error
		wantStatus codes.Code
		wantAbsent bool
	}{
		{name: "success", wantStatus: codes.Unset},
		{name: "no rows", opErr: pgx.ErrNoRows, wantStatus: codes.Unset, wantAbsent: true},
		{name: "store sentinel", opErr: fmt.Errorf("lookup: %w", errMissing), wantStatus: codes.Unset, wantAbsent: true},
		{name: "failure", opErr: errors.New("connection reset"), wantStatus: codes.Error},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := tracetest.NewSpanRecorder()
			tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)).Tracer("test")

			var inner trace.SpanContext
			err := ExecuteAndTrace(context.Background(), tracer, "operinoStore.FindByDomain",
				[]attribute.KeyValue{attribute.String("operino.domain", "acme")},
				func(ctx context.Context) error {
					inner = trace.SpanContextFromContext(ctx)
					return tc.opErr
				}, errMissing)
			assert.ErrorIs(t, err, tc.opErr)

			spans := rec.Ended()
			require.Len(t, spans, 1)
			span := spans[0]
			assert.Equal(t, "operinoStore.FindByDomain", span.Name())
			assert.Equal(t, trace.SpanKindClient, span.SpanKind())
			assert.Equal(t, span.SpanContext().SpanID(), inner.SpanID(), "operation runs inside the span")
			assert.Equal(t, tc.wantStatus, span.Status().Code)

			attrs := make(map[attribute.Key]attribute.Value)
			for _, kv := range span.Attributes() {
				attrs[kv.Key] = kv.Value
			}
			assert.Equal(t, "postgresql", attrs["db.system"].AsString())
			assert.Equal(t, "acme", attrs["operino.domain"].AsString())

			result, ok := attrs["db.result"]
			assert.Equal(t, tc.wantAbsent, ok)
			if tc.wantAbsent {
				assert.Equal(t, "absent", result.AsString())
				assert.Empty(t, span.Events(), "absent rows are not recorded as errors")
			}
		})
	}
}
