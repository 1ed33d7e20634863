package operino

import "context"

// Repository defines persistence for Operino records.
type Repository interface {
	// Create persists a new Operino and returns its ID.
	Create(ctx context.Context, o *Operino) (int64, error)

	// FindByID retrieves an Operino by ID. Returns ErrOperinoNotFound if absent.
	FindByID(ctx context.Context, id int64) (*Operino, error)

	// FindByDomain retrieves the Operino owning a domain. Returns
	// ErrOperinoNotFound if no Operino uses it.
	FindByDomain(ctx context.Context, domain string) (*Operino, error)

	// Delete removes an Operino and its components.
	Delete(ctx context.Context, id int64) error
}
