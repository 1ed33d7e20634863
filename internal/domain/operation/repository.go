package operation

import (
	"context"
	"time"
)

// Repository defines persistence for operation records.
type Repository interface {
	// Create persists a new operation and returns its ID.
	Create(ctx context.Context, op *Operation) (int64, error)

	// Update modifies an existing operation. Returns ErrOperationNotFound if
	// the operation does not exist.
	Update(ctx context.Context, op *Operation) error

	// FindByID retrieves an operation by ID. Returns ErrOperationNotFound if absent.
	FindByID(ctx context.Context, id int64) (*Operation, error)

	// FindByOperinoID retrieves all operations of an Operino, newest first.
	FindByOperinoID(ctx context.Context, operinoID int64) ([]*Operation, error)

	// FindByStatus retrieves all operations with a specific status.
	FindByStatus(ctx context.Context, status Status) ([]*Operation, error)

	// FindStalled retrieves non-terminal operations last updated before the
	// given cutoff.
	FindStalled(ctx context.Context, before time.Time) ([]*Operation, error)
}
