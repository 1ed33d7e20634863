// Package notification publishes provisioning outcomes for downstream
// consumers such as the email sender.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/operino-hub/internal/application/workflow"
	"github.com/ahrav/operino-hub/internal/domain/operino"
	"github.com/ahrav/operino-hub/internal/domain/queue"
	"github.com/ahrav/operino-hub/pkg/common/logger"
	"github.com/ahrav/operino-hub/pkg/common/timeutil"
)

// Config holds the dispatcher settings.
type Config struct {
	Queue            string
	BaseURL          string
	ExplorerURL      string
	SubjectNamespace string
}

// Dispatcher turns workflow outcomes into notifications. Publishing is fire
// and forget: nothing waits for downstream delivery.
type Dispatcher struct {
	publisher queue.Publisher
	cfg       Config
	clock     timeutil.Provider
	render    func(attachmentData) ([]operino.Attachment, error)

	logger *logger.Logger
	tracer trace.Tracer
}

// NewDispatcher creates a dispatcher publishing to cfg.Queue.
func NewDispatcher(publisher queue.Publisher, cfg Config, clock timeutil.Provider, log *logger.Logger, tracer trace.Tracer) *Dispatcher {
	if clock == nil {
		clock = timeutil.Default()
	}
	return &Dispatcher{
		publisher: publisher,
		cfg:       cfg,
		clock:     clock,
		render:    renderAttachments,
		logger:    log.Named("notification_dispatcher"),
		tracer:    tracer,
	}
}

// Build creates the notification for an outcome. A successful outcome
// carries the connection config and, when they can be generated, the
// attachments.
func (d *Dispatcher) Build(ctx context.Context, out workflow.Outcome) operino.Notification {
	task := out.Task
	n := operino.Notification{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		OperinoID: task.OperinoID,
		Domain:    task.Domain,
		Recipient: task.Owner.Email,
		CreatedAt: d.clock.Now(),
	}

	if !out.Succeeded() {
		n.Status = operino.NotificationFailure
		if out.Err != nil {
			n.Error = out.Err.Error()
		}
		return n
	}

	n.Status = operino.NotificationSuccess
	n.Config = task.Config(d.cfg.BaseURL)

	attachments, err := d.render(attachmentData{
		Config:           n.Config,
		SubjectNamespace: d.cfg.SubjectNamespace,
		ExplorerURL:      d.cfg.ExplorerURL,
		Seeded:           out.Seeding.Seeded,
	})
	if err != nil {
		d.logger.Warn(ctx, "could not create attachments", "task_id", task.ID, "error", err)
		return n
	}
	n.Attachments = attachments
	return n
}

// Dispatch publishes the notification for an outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, out workflow.Outcome) error {
	ctx, span := d.tracer.Start(ctx, "notification.Dispatch", trace.WithAttributes(
		attribute.String("task_id", out.Task.ID),
		attribute.String("domain", out.Task.Domain),
		attribute.String("state", string(out.State)),
	))
	defer span.End()

	n := d.Build(ctx, out)
	span.SetAttributes(attribute.Int("attachments", len(n.Attachments)))

	body, err := json.Marshal(n)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error encoding notification")
		return fmt.Errorf("failed to encode notification (%s): %w", n.TaskID, err)
	}

	if err := d.publisher.Publish(ctx, d.cfg.Queue, body); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error publishing notification")
		return fmt.Errorf("failed to publish notification (%s): %w", n.TaskID, err)
	}

	d.logger.Info(ctx, "notification published",
		"task_id", n.TaskID,
		"operino_id", n.OperinoID,
		"status", n.Status,
		"attachments", len(n.Attachments),
	)
	return nil
}
