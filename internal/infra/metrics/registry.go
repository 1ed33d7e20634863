package metrics

import (
	"go.opentelemetry.io/otel/metric"

	"github.com/ahrav/operino-hub/internal/application/health"
	"github.com/ahrav/operino-hub/internal/application/operino"
	"github.com/ahrav/operino-hub/internal/application/sdk/mid"
	"github.com/ahrav/operino-hub/internal/application/workflow"
)

const namespace = "operino_hub"

// Registry provides access to all metric implementations.
// It centralizes the creation and management of metrics instances.
type Registry struct {
	API          mid.APIMetrics
	Provisioning workflow.ProvisioningMetrics
	Operino      operino.OperinoMetrics
	Health       health.HealthMetrics
}

// NewRegistry creates and initializes all metrics implementations.
// It uses a single meter provider to ensure consistent configuration.
func NewRegistry(mp metric.MeterProvider) (*Registry, error) {
	apiMetrics, err := newAPIMetrics(mp)
	if err != nil {
		return nil, err
	}

	provisioningMetrics, err := newProvisioningMetrics(mp)
	if err != nil {
		return nil, err
	}

	operinoMetrics, err := newOperinoMetrics(mp)
	if err != nil {
		return nil, err
	}

	healthMetrics, err := newHealthMetrics(mp)
	if err != nil {
		return nil, err
	}

	return &Registry{
		API:          apiMetrics,
		Provisioning: provisioningMetrics,
		Operino:      operinoMetrics,
		Health:       healthMetrics,
	}, nil
}
