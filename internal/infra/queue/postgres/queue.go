// Package postgres implements the task queue on a Postgres table. Receivers
// lease rows with FOR UPDATE SKIP LOCKED, so any number of workers can poll
// the same queue; a lease that expires before Ack makes the row visible
// again.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/operino-hub/internal/db"
	"github.com/ahrav/operino-hub/internal/domain/queue"
	"github.com/ahrav/operino-hub/internal/infra/storage"
	"github.com/ahrav/operino-hub/pkg/common/logger"
)

// Config controls leasing and polling.
type Config struct {
	// Lease is how long a received message stays invisible to other
	// receivers.
	Lease time.Duration
	// PollInterval is the first wait after an empty poll. Consecutive empty
	// polls back off up to MaxPollInterval.
	PollInterval    time.Duration
	MaxPollInterval time.Duration
}

var (
	_ queue.Publisher = (*Queue)(nil)
	_ queue.Consumer  = (*Queue)(nil)
)

// Queue is a Postgres backed queue.Publisher and queue.Consumer.
type Queue struct {
	q   *db.Queries
	cfg Config

	logger *logger.Logger
	tracer trace.Tracer
}

// New creates a queue over pool.
func New(pool *pgxpool.Pool, cfg Config, log *logger.Logger, tracer trace.Tracer) *Queue {
	if cfg.Lease <= 0 {
		cfg.Lease = 30 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxPollInterval < cfg.PollInterval {
		cfg.MaxPollInterval = 10 * cfg.PollInterval
	}
	return &Queue{
		q:      db.New(pool),
		cfg:    cfg,
		logger: log.Named("postgres_queue"),
		tracer: tracer,
	}
}

// Publish stores a message on the named queue.
func (pq *Queue) Publish(ctx context.Context, name string, body []byte) error {
	dbAttrs := []attribute.KeyValue{
		attribute.String("queue", name),
		attribute.Int("body_size", len(body)),
	}

	return storage.ExecuteAndTrace(ctx, pq.tracer, "postgres.queue.publish", dbAttrs, func(ctx context.Context) error {
		id, err := pq.q.EnqueueMessage(ctx, db.EnqueueMessageParams{Queue: name, Body: body})
		if err != nil {
			return fmt.Errorf("failed to enqueue message (%s): %w", name, err)
		}
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("message_id", id))
		return nil
	})
}

// Receive polls until a message is leased or ctx is done.
func (pq *Queue) Receive(ctx context.Context, name string) (queue.Delivery, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = pq.cfg.PollInterval
	bo.MaxInterval = pq.cfg.MaxPollInterval
	bo.MaxElapsedTime = 0
	bo.Reset()

	for {
		msg, err := pq.lease(ctx, name)
		if err == nil {
			return &delivery{pq: pq, msg: msg}, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}
}

func (pq *Queue) lease(ctx context.Context, name string) (db.QueueMessage, error) {
	var msg db.QueueMessage
	dbAttrs := []attribute.KeyValue{attribute.String("queue", name)}

	err := storage.ExecuteAndTrace(ctx, pq.tracer, "postgres.queue.lease", dbAttrs, func(ctx context.Context) error {
		var err error
		msg, err = pq.q.LeaseMessage(ctx, db.LeaseMessageParams{
			LeaseSeconds: pq.cfg.Lease.Seconds(),
			Queue:        name,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return err
			}
			return fmt.Errorf("failed to lease message (%s): %w", name, err)
		}
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.Int64("message_id", msg.ID),
			attribute.Int("attempts", int(msg.Attempts)),
		)
		return nil
	})
	if err == nil && msg.Attempts > 1 {
		pq.logger.Warn(ctx, "message redelivered", "queue", name, "message_id", msg.ID, "attempts", msg.Attempts)
	}
	return msg, err
}

type delivery struct {
	pq  *Queue
	msg db.QueueMessage
}

func (d *delivery) Body() []byte {
	return d.msg.Body
}

// Ack removes the message.
func (d *delivery) Ack(ctx context.Context) error {
	dbAttrs := []attribute.KeyValue{attribute.Int64("message_id", d.msg.ID)}
	return storage.ExecuteAndTrace(ctx, d.pq.tracer, "postgres.queue.ack", dbAttrs, func(ctx context.Context) error {
		if err := d.pq.q.DeleteMessage(ctx, d.msg.ID); err != nil {
			return fmt.Errorf("failed to ack message (%d): %w", d.msg.ID, err)
		}
		return nil
	})
}

// Nack ends the lease so the message is visible again immediately.
func (d *delivery) Nack(ctx context.Context) error {
	dbAttrs := []attribute.KeyValue{attribute.Int64("message_id", d.msg.ID)}
	return storage.ExecuteAndTrace(ctx, d.pq.tracer, "postgres.queue.nack", dbAttrs, func(ctx context.Context) error {
		if err := d.pq.q.ReleaseMessage(ctx, d.msg.ID); err != nil {
			return fmt.Errorf("failed to release message (%d): %w", d.msg.ID, err)
		}
		return nil
	})
}
