package health

import "context"

// HealthMetrics records the reachability of the clinical data repository.
type HealthMetrics interface {
	SetSystemHealth(ctx context.Context, healthy bool)
}
