package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ahrav/operino-hub/internal/application/workflow"
)

var _ workflow.ProvisioningMetrics = (*provisioningMetrics)(nil)

type provisioningMetrics struct {
	provisioningSuccess       metric.Int64Counter
	provisioningFailure       metric.Int64Counter
	provisioningDuration      metric.Float64Histogram
	provisioningStageDuration metric.Float64Histogram
	concurrentProvisioningOps metric.Int64UpDownCounter

	// Seeding.
	patientsSeeded metric.Int64Counter
	patientsFailed metric.Int64Counter
}

func newProvisioningMetrics(mp metric.MeterProvider) (*provisioningMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(provisioningMetrics)
	var err error

	if m.provisioningSuccess, err = meter.Int64Counter(
		"operino_provisioning_success_total",
		metric.WithDescription("Total number of successful Operino provisioning runs"),
	); err != nil {
		return nil, err
	}

	if m.provisioningFailure, err = meter.Int64Counter(
		"operino_provisioning_failure_total",
		metric.WithDescription("Total number of failed Operino provisioning runs"),
	); err != nil {
		return nil, err
	}

	if m.provisioningDuration, err = meter.Float64Histogram(
		"operino_provisioning_duration_seconds",
		metric.WithDescription("Duration of Operino provisioning runs in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.provisioningStageDuration, err = meter.Float64Histogram(
		"operino_provisioning_stage_duration_seconds",
		metric.WithDescription("Duration of Operino provisioning stages in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.concurrentProvisioningOps, err = meter.Int64UpDownCounter(
		"operino_concurrent_provisioning_runs",
		metric.WithDescription("Number of provisioning runs currently executing"),
	); err != nil {
		return nil, err
	}

	if m.patientsSeeded, err = meter.Int64Counter(
		"operino_patients_seeded_total",
		metric.WithDescription("Total number of demo patients fully seeded"),
	); err != nil {
		return nil, err
	}

	if m.patientsFailed, err = meter.Int64Counter(
		"operino_patients_failed_total",
		metric.WithDescription("Total number of demo patients whose seeding was abandoned"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *provisioningMetrics) IncProvisioningSuccess(ctx context.Context, seeded bool) {
	m.provisioningSuccess.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("seeded", seeded),
	))
}

func (m *provisioningMetrics) IncProvisioningFailure(ctx context.Context, step string) {
	m.provisioningFailure.Add(ctx, 1, metric.WithAttributes(
		attribute.String("step", step),
	))
}

func (m *provisioningMetrics) ObserveProvisioningDuration(ctx context.Context, seeded bool, duration time.Duration) {
	m.provisioningDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.Bool("seeded", seeded),
	))
}

func (m *provisioningMetrics) ObserveProvisioningStageDuration(
	ctx context.Context,
	stage string,
	success bool,
	duration time.Duration,
) {
	m.provisioningStageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.Bool("success", success),
	))
}

func (m *provisioningMetrics) AddPatientsSeeded(ctx context.Context, n int) {
	m.patientsSeeded.Add(ctx, int64(n))
}

func (m *provisioningMetrics) AddPatientsFailed(ctx context.Context, n int) {
	m.patientsFailed.Add(ctx, int64(n))
}

func (m *provisioningMetrics) AddInFlight(ctx context.Context, delta int64) {
	m.concurrentProvisioningOps.Add(ctx, delta)
}
