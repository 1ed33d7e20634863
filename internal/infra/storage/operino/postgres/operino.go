// Package postgres provides the PostgreSQL implementation of operino.Repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/operino-hub/internal/db"
	"github.com/ahrav/operino-hub/internal/domain/operino"
	"github.com/ahrav/operino-hub/internal/infra/storage"
)

var _ operino.Repository = (*operinoStore)(nil)

// operinoStore persists Operinos and their ordered components.
type operinoStore struct {
	q      *db.Queries
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

// NewOperinoStore creates an operino.Repository backed by PostgreSQL.
func NewOperinoStore(pool *pgxpool.Pool, tracer trace.Tracer) operino.Repository {
	return &operinoStore{
		q:      db.New(pool),
		pool:   pool,
		tracer: tracer,
	}
}

// Create persists an Operino and its components in one transaction.
// A domain already in use yields ErrDomainTaken.
func (s *operinoStore) Create(ctx context.Context, o *operino.Operino) (int64, error) {
	dbAttrs := []attribute.KeyValue{
		attribute.String("operino.domain", o.Domain),
		attribute.Int("operino.components", len(o.Components)),
	}

	var id int64
	err := storage.ExecuteAndTrace(ctx, s.tracer, "operinoStore.Create", dbAttrs, func(ctx context.Context) error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		createdAt := o.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		q := s.q.WithTx(tx)
		id, err = q.CreateOperino(ctx, db.CreateOperinoParams{
			Name:           o.Name,
			Domain:         o.Domain,
			OwnerLogin:     o.Owner.Login,
			OwnerEmail:     o.Owner.Email,
			OwnerFirstName: o.Owner.FirstName,
			OwnerLastName:  o.Owner.LastName,
			Active:         o.Active,
			Provision:      o.Provision,
			CreatedAt:      pgtype.Timestamptz{Time: createdAt, Valid: true},
		})
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return operino.ErrDomainTaken
			}
			return err
		}

		for i, c := range o.Components {
			if err := q.CreateOperinoComponent(ctx, db.CreateOperinoComponentParams{
				OperinoID:         id,
				Position:          int32(i),
				ComponentType:     string(c.Type),
				Availability:      c.Availability,
				Hosting:           string(c.Hosting),
				DiskSpace:         c.DiskSpace,
				RecordsNumber:     c.RecordsNumber,
				TransactionsLimit: c.TransactionsLimit,
			}); err != nil {
				return fmt.Errorf("failed to persist component %d: %w", i, err)
			}
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// FindByID retrieves an Operino by ID.
// Returns ErrOperinoNotFound if the Operino doesn't exist.
func (s *operinoStore) FindByID(ctx context.Context, id int64) (*operino.Operino, error) {
	dbAttrs := []attribute.KeyValue{attribute.Int64("operino.id", id)}

	var o *operino.Operino
	err := storage.ExecuteAndTrace(ctx, s.tracer, "operinoStore.FindByID", dbAttrs, func(ctx context.Context) error {
		row, err := s.q.FindOperinoByID(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return operino.ErrOperinoNotFound
			}
			return err
		}
		o, err = s.withComponents(ctx, row)
		return err
	}, operino.ErrOperinoNotFound)
	return o, err
}

// FindByDomain retrieves the Operino owning domain.
// Returns ErrOperinoNotFound if no Operino uses it.
func (s *operinoStore) FindByDomain(ctx context.Context, domain string) (*operino.Operino, error) {
	dbAttrs := []attribute.KeyValue{attribute.String("operino.domain", domain)}

	var o *operino.Operino
	err := storage.ExecuteAndTrace(ctx, s.tracer, "operinoStore.FindByDomain", dbAttrs, func(ctx context.Context) error {
		row, err := s.q.FindOperinoByDomain(ctx, domain)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return operino.ErrOperinoNotFound
			}
			return err
		}
		o, err = s.withComponents(ctx, row)
		return err
	}, operino.ErrOperinoNotFound)
	return o, err
}

// Delete removes an Operino; its components go with it.
// Returns ErrOperinoNotFound if nothing was deleted.
func (s *operinoStore) Delete(ctx context.Context, id int64) error {
	dbAttrs := []attribute.KeyValue{attribute.Int64("operino.id", id)}

	return storage.ExecuteAndTrace(ctx, s.tracer, "operinoStore.Delete", dbAttrs, func(ctx context.Context) error {
		rows, err := s.q.DeleteOperino(ctx, id)
		if err != nil {
			return err
		}
		if rows == 0 {
			return operino.ErrOperinoNotFound
		}
		return nil
	}, operino.ErrOperinoNotFound)
}

func (s *operinoStore) withComponents(ctx context.Context, row db.Operino) (*operino.Operino, error) {
	dbComponents, err := s.q.ListOperinoComponents(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load components (%d): %w", row.ID, err)
	}

	o := &operino.Operino{
		ID:   row.ID,
		Name: row.Name,
		Owner: operino.Owner{
			Login:     row.OwnerLogin,
			Email:     row.OwnerEmail,
			FirstName: row.OwnerFirstName,
			LastName:  row.OwnerLastName,
		},
		Domain:    row.Domain,
		Active:    row.Active,
		Provision: row.Provision,
		CreatedAt: row.CreatedAt.Time,
	}
	for _, c := range dbComponents {
		o.Components = append(o.Components, operino.Component{
			Type:              operino.ComponentType(c.ComponentType),
			Availability:      c.Availability,
			Hosting:           operino.HostingType(c.Hosting),
			DiskSpace:         c.DiskSpace,
			RecordsNumber:     c.RecordsNumber,
			TransactionsLimit: c.TransactionsLimit,
		})
	}
	return o, nil
}
