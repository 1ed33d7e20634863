// Package operino holds the application service behind the Operino create,
// read and delete surface. Creation only persists the record and enqueues a
// provisioning task; the provisioning itself happens in the worker.
package operino

import (
	"context"
	"errors"
	"fmt"

	"github.com/sethvargo/go-password/password"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/operino-hub/internal/domain/operation"
	"github.com/ahrav/operino-hub/internal/domain/operino"
	"github.com/ahrav/operino-hub/internal/domain/queue"
	"github.com/ahrav/operino-hub/pkg/common/logger"
	"github.com/ahrav/operino-hub/pkg/common/timeutil"
)

// Deprovision stages reported on failure.
const (
	StageTruncate = "truncate-domain"
	StageDelete   = "delete-record"
)

const (
	passwordLength = 12
	passwordDigits = 3
)

// DomainTruncator removes all data held in a CDR domain.
type DomainTruncator interface {
	TruncateDomain(ctx context.Context, domain string) error
}

// PasswordFunc generates domain user passwords.
type PasswordFunc func() (string, error)

// GeneratePassword returns a random alphanumeric password for a domain user.
func GeneratePassword() (string, error) {
	return password.Generate(passwordLength, passwordDigits, 0, false, true)
}

// Config controls Operino creation.
type Config struct {
	TaskQueue         string
	DefaultComponents bool
}

// CreateParams contains parameters for creating a new Operino.
type CreateParams struct {
	Name       string
	Domain     string
	Owner      operino.Owner
	Provision  bool
	Components []operino.Component
}

// CreateResult contains the output of an Operino creation.
type CreateResult struct {
	Operino *operino.Operino
	TaskID  string
}

// DeleteResult contains the output of an Operino deletion.
type DeleteResult struct {
	OperationID int64
}

// Service provides Operino application services.
type Service struct {
	operinoRepo   operino.Repository
	operationRepo operation.Repository
	cdr           DomainTruncator
	publisher     queue.Publisher
	cfg           Config
	passwords     PasswordFunc
	clock         timeutil.Provider
	metrics       OperinoMetrics

	logger *logger.Logger
	tracer trace.Tracer
}

// NewService creates a new Operino service.
func NewService(
	operinoRepo operino.Repository,
	operationRepo operation.Repository,
	cdr DomainTruncator,
	publisher queue.Publisher,
	cfg Config,
	passwords PasswordFunc,
	clock timeutil.Provider,
	metrics OperinoMetrics,
	logger *logger.Logger,
	tracer trace.Tracer,
) *Service {
	if passwords == nil {
		passwords = GeneratePassword
	}
	if clock == nil {
		clock = timeutil.Default()
	}
	return &Service{
		operinoRepo:   operinoRepo,
		operationRepo: operationRepo,
		cdr:           cdr,
		publisher:     publisher,
		cfg:           cfg,
		passwords:     passwords,
		clock:         clock,
		metrics:       metrics,
		logger:        logger.Named("operino_service"),
		tracer:        tracer,
	}
}

// Create validates and persists a new Operino, then enqueues its
// provisioning task. If the task cannot be enqueued the record is removed
// again so the domain stays free for a retry.
func (s *Service) Create(ctx context.Context, params CreateParams) (*CreateResult, error) {
	logger := logger.NewLoggerContext(s.logger.With(
		"operation_type", "create",
		"operino_name", params.Name,
		"domain", params.Domain,
		"provision", params.Provision,
	))
	ctx, span := s.tracer.Start(ctx, "operino.Create", trace.WithAttributes(
		attribute.String("name", params.Name),
		attribute.String("domain", params.Domain),
		attribute.Bool("provision", params.Provision),
	))
	defer span.End()

	o, err := operino.NewOperino(params.Name, params.Domain, params.Owner, params.Provision, params.Components)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid operino")
		return nil, err
	}

	existing, err := s.operinoRepo.FindByDomain(ctx, params.Domain)
	if err != nil && !errors.Is(err, operino.ErrOperinoNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error checking existing domain")
		return nil, fmt.Errorf("error checking existing domain (%s): %w", params.Domain, err)
	}
	if existing != nil {
		span.RecordError(operino.ErrDomainTaken)
		span.SetStatus(codes.Error, "domain already taken")
		return nil, operino.ErrDomainTaken
	}

	if s.cfg.DefaultComponents && o.AddDefaultComponents() {
		span.AddEvent("default components added")
	}
	o.CreatedAt = s.clock.Now()

	id, err := s.operinoRepo.Create(ctx, o)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error persisting operino")
		return nil, fmt.Errorf("failed to persist operino (%s): %w", params.Domain, err)
	}
	o.ID = id
	logger.Add("operino_id", id)
	span.SetAttributes(attribute.Int64("operino_id", id))
	span.AddEvent("operino persisted")
	logger.Info(ctx, "operino created")
	if s.metrics != nil {
		s.metrics.IncOperinosCreated(ctx, o.Provision)
	}

	taskID, err := s.enqueue(ctx, o)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error enqueuing provisioning task")
		logger.Error(ctx, "provisioning task not enqueued, removing operino", "error", err)
		if delErr := s.operinoRepo.Delete(ctx, id); delErr != nil {
			logger.Error(ctx, "failed to remove unprovisioned operino", "error", delErr)
			return nil, errors.Join(err, fmt.Errorf("failed to remove operino (%d): %w", id, delErr))
		}
		span.AddEvent("unprovisioned operino removed")
		return nil, err
	}
	logger.Add("task_id", taskID)
	logger.Info(ctx, "provisioning task enqueued")
	span.SetStatus(codes.Ok, "operino created")

	return &CreateResult{Operino: o, TaskID: taskID}, nil
}

func (s *Service) enqueue(ctx context.Context, o *operino.Operino) (string, error) {
	pw, err := s.passwords()
	if err != nil {
		return "", fmt.Errorf("failed to generate domain user password (%s): %w", o.Domain, err)
	}

	task, err := operino.NewProvisioningTask(o, pw, s.clock.Now())
	if err != nil {
		return "", fmt.Errorf("failed to build provisioning task (%s): %w", o.Domain, err)
	}
	body, err := task.Encode()
	if err != nil {
		return "", fmt.Errorf("failed to encode provisioning task (%s): %w", o.Domain, err)
	}

	if err := s.publisher.Publish(ctx, s.cfg.TaskQueue, body); err != nil {
		return "", fmt.Errorf("failed to publish provisioning task (%s): %w", o.Domain, err)
	}
	if s.metrics != nil {
		s.metrics.IncTasksEnqueued(ctx)
	}
	return task.ID, nil
}

// Get retrieves an Operino by ID.
func (s *Service) Get(ctx context.Context, id int64) (*operino.Operino, error) {
	ctx, span := s.tracer.Start(ctx, "operino.Get", trace.WithAttributes(
		attribute.Int64("operino_id", id),
	))
	defer span.End()

	o, err := s.operinoRepo.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, operino.ErrOperinoNotFound) {
			span.SetStatus(codes.Error, "operino not found")
			return nil, err
		}
		span.SetStatus(codes.Error, "error retrieving operino")
		return nil, fmt.Errorf("failed to retrieve operino (%d): %w", id, err)
	}
	return o, nil
}

// Delete deprovisions an Operino: the CDR domain is truncated first and the
// record is only removed once truncation succeeded. The run is tracked as an
// operino.deprovision operation.
func (s *Service) Delete(ctx context.Context, id int64) (*DeleteResult, error) {
	logger := logger.NewLoggerContext(s.logger.With(
		"operation_type", "delete",
		"operino_id", id,
	))
	ctx, span := s.tracer.Start(ctx, "operino.Delete", trace.WithAttributes(
		attribute.Int64("operino_id", id),
	))
	defer span.End()

	o, err := s.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error retrieving operino")
		return nil, err
	}
	logger.Add("domain", o.Domain)

	op, err := operation.NewDeprovisionOperation(id, o.Domain)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error creating operation")
		return nil, fmt.Errorf("failed to create operation for operino (%d): %w", id, err)
	}
	op.Start()

	opID, err := s.operationRepo.Create(ctx, op)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error persisting operation")
		return nil, fmt.Errorf("failed to persist operation for operino (%d): %w", id, err)
	}
	op.ID = opID
	logger.Add("operation_id", opID)
	span.SetAttributes(attribute.Int64("operation_id", opID))

	if err := s.cdr.TruncateDomain(ctx, o.Domain); err != nil {
		s.failDeprovision(ctx, logger, op, StageTruncate, err, false)
		span.RecordError(err)
		span.SetStatus(codes.Error, "error truncating domain")
		return nil, fmt.Errorf("failed to truncate domain (%s): %w", o.Domain, err)
	}
	span.AddEvent("domain truncated")
	logger.Info(ctx, "domain truncated")

	if err := s.operinoRepo.Delete(ctx, id); err != nil {
		s.failDeprovision(ctx, logger, op, StageDelete, err, true)
		span.RecordError(err)
		span.SetStatus(codes.Error, "error deleting operino")
		return nil, fmt.Errorf("failed to delete operino (%d): %w", id, err)
	}

	op.Complete(map[string]any{"truncated": true, "deleted": true})
	if err := s.operationRepo.Update(ctx, op); err != nil {
		logger.Warn(ctx, "failed to record completed deprovision operation", "error", err)
	}
	if s.metrics != nil {
		s.metrics.IncDeprovisionSuccess(ctx)
	}
	logger.Info(ctx, "operino deleted")
	span.SetStatus(codes.Ok, "operino deleted")

	return &DeleteResult{OperationID: opID}, nil
}

func (s *Service) failDeprovision(
	ctx context.Context,
	logger *logger.LoggerContext,
	op *operation.Operation,
	stage string,
	cause error,
	truncated bool,
) {
	op.Fail(cause.Error(), map[string]any{"failed_stage": stage, "truncated": truncated})
	if err := s.operationRepo.Update(ctx, op); err != nil {
		logger.Warn(ctx, "failed to record failed deprovision operation", "error", err)
	}
	if s.metrics != nil {
		s.metrics.IncDeprovisionFailure(ctx, stage)
	}
	logger.Error(ctx, "deprovision failed", "stage", stage, "error", cause)
}
