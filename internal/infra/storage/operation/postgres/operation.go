package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/operino-hub/internal/db"
	"github.com/ahrav/operino-hub/internal/domain/operation"
	"github.com/ahrav/operino-hub/internal/infra/storage"
)

var _ operation.Repository = (*operationStore)(nil)

// operationStore implements operation.Repository using Postgres and sqlc-generated queries.
type operationStore struct {
	q      *db.Queries
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

const defaultCreatedBy = "system@operino-hub"

// NewOperationStore creates an operation.Repository backed by PostgreSQL.
// It provides persistence for operation entities and their lifecycle management.
func NewOperationStore(pool *pgxpool.Pool, tracer trace.Tracer) operation.Repository {
	return &operationStore{q: db.New(pool), pool: pool, tracer: tracer}
}

// Create persists a new operation and returns its ID. The operation's
// current status and start time are stored, so a run that starts before it
// is first persisted is recorded as in progress.
func (s *operationStore) Create(ctx context.Context, op *operation.Operation) (int64, error) {
	dbAttrs := []attribute.KeyValue{
		attribute.String("operation.type", string(op.Type)),
		attribute.String("operation.status", string(op.Status)),
	}

	if op.OperinoID != nil {
		dbAttrs = append(dbAttrs, attribute.Int64("operino.id", *op.OperinoID))
	}

	var id int64
	err := storage.ExecuteAndTrace(ctx, s.tracer, "operationStore.Create", dbAttrs, func(ctx context.Context) error {
		paramsJSON, err := json.Marshal(op.Parameters)
		if err != nil {
			return err
		}

		createdBy := defaultCreatedBy
		if op.CreatedBy != nil {
			createdBy = *op.CreatedBy
		}

		createdAt := op.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		var createErr error
		id, createErr = s.q.CreateOperation(ctx, db.CreateOperationParams{
			OperinoID:     toInt8(op.OperinoID),
			OperationType: string(op.Type),
			Status:        db.OperationStatus(op.Status),
			Parameters:    paramsJSON,
			CreatedBy:     createdBy,
			CreatedAt:     pgtype.Timestamptz{Time: createdAt, Valid: true},
			StartedAt:     toTimestamptz(op.StartedAt),
		})
		return createErr
	})

	return id, err
}

// Update modifies an existing operation with new state information.
// Returns ErrOperationNotFound if no row was updated.
func (s *operationStore) Update(ctx context.Context, op *operation.Operation) error {
	dbAttrs := []attribute.KeyValue{
		attribute.Int64("operation.id", op.ID),
		attribute.String("operation.status", string(op.Status)),
	}

	if op.OperinoID != nil {
		dbAttrs = append(dbAttrs, attribute.Int64("operino.id", *op.OperinoID))
	}

	return storage.ExecuteAndTrace(ctx, s.tracer, "operationStore.Update", dbAttrs, func(ctx context.Context) error {
		resultJSON, err := json.Marshal(op.Result)
		if err != nil {
			return err
		}

		var errorMsg pgtype.Text
		if op.ErrorMessage != nil {
			errorMsg.String = *op.ErrorMessage
			errorMsg.Valid = true
		}

		rows, err := s.q.UpdateOperation(ctx, db.UpdateOperationParams{
			ID:           op.ID,
			Status:       db.OperationStatus(op.Status),
			Result:       resultJSON,
			ErrorMessage: errorMsg,
			StartedAt:    toTimestamptz(op.StartedAt),
			CompletedAt:  toTimestamptz(op.CompletedAt),
		})
		if err != nil {
			return err
		}
		if rows == 0 {
			return operation.ErrOperationNotFound
		}
		return nil
	}, operation.ErrOperationNotFound)
}

// FindByID retrieves an operation by ID.
// Returns ErrOperationNotFound if the operation doesn't exist.
func (s *operationStore) FindByID(ctx context.Context, id int64) (*operation.Operation, error) {
	dbAttrs := []attribute.KeyValue{attribute.Int64("operation.id", id)}

	var dbOp db.Operation
	err := storage.ExecuteAndTrace(ctx, s.tracer, "operationStore.FindByID", dbAttrs, func(ctx context.Context) error {
		var err error
		dbOp, err = s.q.FindOperationByID(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return operation.ErrOperationNotFound
			}
			return err
		}
		return nil
	}, operation.ErrOperationNotFound)

	if err != nil {
		return nil, err
	}

	return mapDBOperationToDomain(dbOp)
}

// FindByOperinoID retrieves all operations recorded for an Operino, newest
// first. Operations outlive their Operino so deprovision history stays
// queryable.
func (s *operationStore) FindByOperinoID(ctx context.Context, operinoID int64) ([]*operation.Operation, error) {
	dbAttrs := []attribute.KeyValue{attribute.Int64("operino.id", operinoID)}

	var dbOps []db.Operation
	err := storage.ExecuteAndTrace(ctx, s.tracer, "operationStore.FindByOperinoID", dbAttrs, func(ctx context.Context) error {
		var err error
		dbOps, err = s.q.FindOperationsByOperinoID(ctx, pgtype.Int8{Int64: operinoID, Valid: true})
		return err
	})

	if err != nil {
		return nil, err
	}

	return mapDBOperationsToDomain(dbOps)
}

// FindByStatus retrieves operations with a specific status.
// Useful for finding operations in particular states (pending, running, etc.).
func (s *operationStore) FindByStatus(ctx context.Context, status operation.Status) ([]*operation.Operation, error) {
	dbAttrs := []attribute.KeyValue{attribute.String("operation.status", string(status))}

	var dbOps []db.Operation
	err := storage.ExecuteAndTrace(ctx, s.tracer, "operationStore.FindByStatus", dbAttrs, func(ctx context.Context) error {
		var err error
		dbOps, err = s.q.FindOperationsByStatus(ctx, db.OperationStatus(status))
		return err
	})

	if err != nil {
		return nil, err
	}

	return mapDBOperationsToDomain(dbOps)
}

// FindStalled retrieves pending or in-progress operations whose last update
// is older than before.
func (s *operationStore) FindStalled(ctx context.Context, before time.Time) ([]*operation.Operation, error) {
	dbAttrs := []attribute.KeyValue{attribute.String("operation.filter", "stalled")}

	var dbOps []db.Operation
	err := storage.ExecuteAndTrace(ctx, s.tracer, "operationStore.FindStalled", dbAttrs, func(ctx context.Context) error {
		var err error
		dbOps, err = s.q.FindStalledOperations(ctx, pgtype.Timestamptz{Time: before, Valid: true})
		return err
	})

	if err != nil {
		return nil, err
	}

	return mapDBOperationsToDomain(dbOps)
}

// mapDBOperationToDomain converts a database operation record to a domain operation entity.
// It handles nullable fields and JSON deserialization of parameters and results.
func mapDBOperationToDomain(dbOp db.Operation) (*operation.Operation, error) {
	var operinoID *int64
	if dbOp.OperinoID.Valid {
		val := dbOp.OperinoID.Int64
		operinoID = &val
	}

	var startedAt *time.Time
	if dbOp.StartedAt.Valid {
		val := dbOp.StartedAt.Time
		startedAt = &val
	}

	var completedAt *time.Time
	if dbOp.CompletedAt.Valid {
		val := dbOp.CompletedAt.Time
		completedAt = &val
	}

	var updatedAt *time.Time
	if !dbOp.UpdatedAt.Time.Equal(dbOp.CreatedAt.Time) {
		val := dbOp.UpdatedAt.Time
		updatedAt = &val
	}

	var errorMessage *string
	if dbOp.ErrorMessage.Valid {
		val := dbOp.ErrorMessage.String
		errorMessage = &val
	}

	createdBy := defaultCreatedBy
	if dbOp.CreatedBy != "" {
		createdBy = dbOp.CreatedBy
	}
	createdByPtr := &createdBy

	params := map[string]any{}
	if len(dbOp.Parameters) > 0 {
		if err := json.Unmarshal(dbOp.Parameters, &params); err != nil {
			return nil, err
		}
	}

	var result map[string]any
	if len(dbOp.Result) > 0 && string(dbOp.Result) != "null" {
		if err := json.Unmarshal(dbOp.Result, &result); err != nil {
			return nil, err
		}
	}

	opType, err := operation.ParseType(dbOp.OperationType)
	if err != nil {
		return nil, err
	}

	return &operation.Operation{
		ID:           dbOp.ID,
		Type:         opType,
		Status:       operation.Status(dbOp.Status),
		OperinoID:    operinoID,
		CreatedAt:    dbOp.CreatedAt.Time,
		StartedAt:    startedAt,
		CompletedAt:  completedAt,
		UpdatedAt:    updatedAt,
		CreatedBy:    createdByPtr,
		ErrorMessage: errorMessage,
		Parameters:   params,
		Result:       result,
	}, nil
}

// mapDBOperationsToDomain converts multiple database operation records to domain entities.
func mapDBOperationsToDomain(dbOps []db.Operation) ([]*operation.Operation, error) {
	ops := make([]*operation.Operation, 0, len(dbOps))
	for _, dbOp := range dbOps {
		op, err := mapDBOperationToDomain(dbOp)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func toInt8(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

func toTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}
