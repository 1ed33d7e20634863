package metrics

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	"github.com/ahrav/operino-hub/internal/application/health"
)

var _ health.HealthMetrics = (*healthMetrics)(nil)

type healthMetrics struct {
	systemHealth metric.Int64Gauge
}

func newHealthMetrics(mp metric.MeterProvider) (*healthMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(healthMetrics)
	var err error

	if m.systemHealth, err = meter.Int64Gauge(
		"cdr_health",
		metric.WithDescription("Reachability of the clinical data repository (1 healthy, 0 unhealthy)"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *healthMetrics) SetSystemHealth(ctx context.Context, healthy bool) {
	var v int64
	if healthy {
		v = 1
	}
	m.systemHealth.Record(ctx, v)
}
