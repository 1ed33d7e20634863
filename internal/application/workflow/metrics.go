package workflow

import (
	"context"
	"time"
)

// ProvisioningMetrics defines metrics for Operino provisioning runs.
type ProvisioningMetrics interface {
	// IncProvisioningSuccess increments the count of completed provisioning runs.
	IncProvisioningSuccess(ctx context.Context, seeded bool)

	// IncProvisioningFailure increments the count of failed runs by failing step.
	IncProvisioningFailure(ctx context.Context, step string)

	// ObserveProvisioningDuration records how long a whole run took.
	ObserveProvisioningDuration(ctx context.Context, seeded bool, duration time.Duration)

	// ObserveProvisioningStageDuration records how long a single step took.
	ObserveProvisioningStageDuration(ctx context.Context, stage string, success bool, duration time.Duration)

	// AddPatientsSeeded counts patients fully seeded into a domain.
	AddPatientsSeeded(ctx context.Context, n int)

	// AddPatientsFailed counts patients whose seeding was abandoned.
	AddPatientsFailed(ctx context.Context, n int)

	// AddInFlight adjusts the number of runs currently executing.
	AddInFlight(ctx context.Context, delta int64)
}
