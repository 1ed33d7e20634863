package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ahrav/operino-hub/internal/application/operino"
)

var _ operino.OperinoMetrics = (*operinoMetrics)(nil)

type operinoMetrics struct {
	operinosCreated     metric.Int64Counter
	tasksEnqueued       metric.Int64Counter
	deprovisionSuccess  metric.Int64Counter
	deprovisionFailures metric.Int64Counter
}

func newOperinoMetrics(mp metric.MeterProvider) (*operinoMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(operinoMetrics)
	var err error

	if m.operinosCreated, err = meter.Int64Counter(
		"operino_created_total",
		metric.WithDescription("Total number of Operinos created"),
	); err != nil {
		return nil, err
	}

	if m.tasksEnqueued, err = meter.Int64Counter(
		"operino_tasks_enqueued_total",
		metric.WithDescription("Total number of provisioning tasks enqueued"),
	); err != nil {
		return nil, err
	}

	if m.deprovisionSuccess, err = meter.Int64Counter(
		"operino_deprovision_success_total",
		metric.WithDescription("Total number of successful Operino deprovisions"),
	); err != nil {
		return nil, err
	}

	if m.deprovisionFailures, err = meter.Int64Counter(
		"operino_deprovision_failure_total",
		metric.WithDescription("Total number of failed Operino deprovisions"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *operinoMetrics) IncOperinosCreated(ctx context.Context, provision bool) {
	m.operinosCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("provision", provision),
	))
}

func (m *operinoMetrics) IncTasksEnqueued(ctx context.Context) {
	m.tasksEnqueued.Add(ctx, 1)
}

func (m *operinoMetrics) IncDeprovisionSuccess(ctx context.Context) {
	m.deprovisionSuccess.Add(ctx, 1)
}

func (m *operinoMetrics) IncDeprovisionFailure(ctx context.Context, stage string) {
	m.deprovisionFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
	))
}
