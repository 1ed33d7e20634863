// Package provisioning consumes provisioning tasks and records their
// outcome.
package provisioning

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/operino-hub/internal/application/workflow"
	"github.com/ahrav/operino-hub/internal/domain/operation"
	"github.com/ahrav/operino-hub/internal/domain/operino"
	"github.com/ahrav/operino-hub/pkg/common/logger"
)

// Runner executes the provisioning workflow for a task.
type Runner interface {
	Run(ctx context.Context, task operino.ProvisioningTask) workflow.Outcome
}

// Notifier publishes the outcome of a task.
type Notifier interface {
	Dispatch(ctx context.Context, out workflow.Outcome) error
}

// Service handles a single provisioning task: it tracks the run as an
// operation, executes the workflow and publishes the outcome.
type Service struct {
	runner        Runner
	operationRepo operation.Repository
	notifier      Notifier

	logger *logger.Logger
	tracer trace.Tracer
}

// NewService creates a provisioning service.
func NewService(
	runner Runner,
	operationRepo operation.Repository,
	notifier Notifier,
	log *logger.Logger,
	tracer trace.Tracer,
) *Service {
	return &Service{
		runner:        runner,
		operationRepo: operationRepo,
		notifier:      notifier,
		logger:        log.Named("provisioning_service"),
		tracer:        tracer,
	}
}

// Handle runs a task to completion or failure. Failures of the operation
// record or the notification are logged and never change the outcome.
func (s *Service) Handle(ctx context.Context, task operino.ProvisioningTask) workflow.Outcome {
	lc := logger.NewLoggerContext(s.logger.With(
		"task_id", task.ID,
		"operino_id", task.OperinoID,
		"domain", task.Domain,
	))
	ctx, span := s.tracer.Start(ctx, "provisioning.Handle", trace.WithAttributes(
		attribute.String("task_id", task.ID),
		attribute.Int64("operino_id", task.OperinoID),
		attribute.String("domain", task.Domain),
	))
	defer span.End()

	op := s.startOperation(ctx, lc, task)

	out := s.runner.Run(ctx, task)
	span.SetAttributes(attribute.String("state", string(out.State)))
	if !out.Succeeded() {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, "provisioning failed")
	}

	if op != nil {
		s.finishOperation(ctx, lc, op, out)
	}

	if err := s.notifier.Dispatch(ctx, out); err != nil {
		span.RecordError(err)
		lc.Error(ctx, "error dispatching notification", "error", err)
	}
	return out
}

func (s *Service) startOperation(ctx context.Context, lc *logger.LoggerContext, task operino.ProvisioningTask) *operation.Operation {
	op, err := operation.NewProvisionOperation(task.OperinoID, task.ID, task.Domain, task.Provision)
	if err != nil {
		lc.Warn(ctx, "error creating operation", "error", err)
		return nil
	}
	op.Start()

	id, err := s.operationRepo.Create(ctx, op)
	if err != nil {
		lc.Warn(ctx, "error persisting operation, continuing untracked", "error", err)
		return nil
	}
	op.ID = id
	lc.Add("operation_id", id)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("operation_id", id))
	return op
}

func (s *Service) finishOperation(ctx context.Context, lc *logger.LoggerContext, op *operation.Operation, out workflow.Outcome) {
	if out.Succeeded() {
		op.Complete(out.Result())
	} else {
		msg := "provisioning failed"
		if out.Err != nil {
			msg = out.Err.Error()
		}
		op.Fail(msg, out.Result())
	}

	if err := s.operationRepo.Update(ctx, op); err != nil {
		lc.Error(ctx, "error persisting operation result", "error", err)
		return
	}
	lc.Info(ctx, "operation recorded", "status", op.Status)
}
