package operation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/operino-hub/internal/domain/operation"
	"github.com/ahrav/operino-hub/pkg/common/logger"
	"github.com/ahrav/operino-hub/pkg/common/timeutil"
)

// Service exposes the operation records of provisioning and deprovisioning
// runs so callers can poll their progress.
type Service struct {
	repo  operation.Repository
	clock timeutil.Provider

	logger *logger.Logger
	tracer trace.Tracer
}

// NewService creates a new operation service with the provided repository.
func NewService(repo operation.Repository, clock timeutil.Provider, logger *logger.Logger, tracer trace.Tracer) *Service {
	if clock == nil {
		clock = timeutil.Default()
	}
	return &Service{
		repo:   repo,
		clock:  clock,
		logger: logger.Named("operation_service"),
		tracer: tracer,
	}
}

// GetByID retrieves an operation by its ID.
func (s *Service) GetByID(ctx context.Context, operationID int64) (*operation.Operation, error) {
	ctx, span := s.tracer.Start(ctx, "operation.GetByID", trace.WithAttributes(
		attribute.Int64("operation_id", operationID),
	))
	defer span.End()

	op, err := s.repo.FindByID(ctx, operationID)
	if errors.Is(err, operation.ErrOperationNotFound) || (err == nil && op == nil) {
		span.RecordError(operation.ErrOperationNotFound)
		span.SetStatus(codes.Error, "operation not found")
		return nil, operation.ErrOperationNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error retrieving operation")
		return nil, fmt.Errorf("failed to retrieve operation (%d): %w", operationID, err)
	}

	s.logger.Debug(ctx, "operation retrieved", "operation_id", operationID)
	span.SetStatus(codes.Ok, "operation retrieved")
	return op, nil
}

// GetOperationsByOperino returns the operations of an Operino, newest first.
func (s *Service) GetOperationsByOperino(ctx context.Context, operinoID int64) ([]*operation.Operation, error) {
	ctx, span := s.tracer.Start(ctx, "operation.GetOperationsByOperino", trace.WithAttributes(
		attribute.Int64("operino_id", operinoID),
	))
	defer span.End()

	ops, err := s.repo.FindByOperinoID(ctx, operinoID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error retrieving operations for operino")
		return nil, fmt.Errorf("failed to retrieve operations for operino (%d): %w", operinoID, err)
	}
	s.logger.Debug(ctx, "operations retrieved for operino", "operino_id", operinoID, "operation_count", len(ops))
	span.AddEvent("operations retrieved", trace.WithAttributes(attribute.Int("operation_count", len(ops))))
	return ops, nil
}

// ListStalledOperations returns non-terminal operations not updated within
// threshold. A provisioning run killed mid-way leaves such a record behind.
func (s *Service) ListStalledOperations(ctx context.Context, threshold time.Duration) ([]*operation.Operation, error) {
	ctx, span := s.tracer.Start(ctx, "operation.ListStalledOperations", trace.WithAttributes(
		attribute.String("threshold", threshold.String()),
	))
	defer span.End()

	if threshold <= 0 {
		err := operation.NewValidationError("threshold", "must be positive")
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid threshold")
		return nil, err
	}

	ops, err := s.repo.FindStalled(ctx, s.clock.Now().Add(-threshold))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error retrieving stalled operations")
		return nil, fmt.Errorf("failed to retrieve stalled operations: %w", err)
	}

	if len(ops) > 0 {
		s.logger.Warn(ctx, "stalled operations found", "operation_count", len(ops), "threshold", threshold)
	}
	span.AddEvent("stalled operations retrieved", trace.WithAttributes(attribute.Int("operation_count", len(ops))))
	return ops, nil
}

// ListByStatus returns all operations in a status.
func (s *Service) ListByStatus(ctx context.Context, status operation.Status) ([]*operation.Operation, error) {
	ctx, span := s.tracer.Start(ctx, "operation.ListByStatus", trace.WithAttributes(
		attribute.String("status", string(status)),
	))
	defer span.End()

	ops, err := s.repo.FindByStatus(ctx, status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error retrieving operations by status")
		return nil, fmt.Errorf("failed to retrieve %s operations: %w", status, err)
	}
	return ops, nil
}
