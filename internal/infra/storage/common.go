package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var dbSystem = attribute.String("db.system", "postgresql")

// ExecuteAndTrace runs operation inside a client span named spanName that
// carries db.system and attributes.
//
// pgx.ErrNoRows and any of the absent errors (a store's not-found sentinel)
// are ordinary outcomes: they are returned unchanged and tagged on the span
// as db.result=absent without marking it failed. An empty queue poll or a
// free domain check is therefore not reported as a database error. Every
// other error is recorded and sets the span status to Error.
func ExecuteAndTrace(
	ctx context.Context,
	tracer trace.Tracer,
	spanName string,
	attributes []attribute.KeyValue,
	operation func(ctx context.Context) error,
	absent ...error,
) error {
	ctx, span := tracer.Start(
		ctx,
		spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(dbSystem),
		trace.WithAttributes(attributes...),
	)
	defer span.End()

	err := operation(ctx)
	switch {
	case err == nil:
		return nil
	case isAbsent(err, absent):
		span.SetAttributes(attribute.String("db.result", "absent"))
		return err
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
}

func isAbsent(err error, absent []error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	for _, target := range absent {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
