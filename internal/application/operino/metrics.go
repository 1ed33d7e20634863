package operino

import "context"

// OperinoMetrics records Operino lifecycle events.
type OperinoMetrics interface {
	IncOperinosCreated(ctx context.Context, provision bool)
	IncTasksEnqueued(ctx context.Context)
	IncDeprovisionSuccess(ctx context.Context)
	IncDeprovisionFailure(ctx context.Context, stage string)
}
