// Package kafka implements the task queue on Kafka topics. Each named queue
// maps to a topic of the same name; a consumer belongs to one topic for its
// whole life.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/operino-hub/internal/domain/queue"
	"github.com/ahrav/operino-hub/pkg/common/logger"
)

const defaultPollTimeout = 500 * time.Millisecond

// Config holds the broker settings.
type Config struct {
	Brokers string
	GroupID string
	// PollTimeout bounds a single ReadMessage call so cancellation is
	// noticed promptly.
	PollTimeout time.Duration
}

func (c Config) producerConfig() *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers":  c.Brokers,
		"acks":               "all",
		"enable.idempotence": true,
	}
}

func (c Config) consumerConfig() *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers":  c.Brokers,
		"group.id":           c.GroupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	}
}

var _ queue.Publisher = (*Publisher)(nil)

// Publisher produces messages and waits for the broker acknowledgement.
type Publisher struct {
	producer *kafka.Producer
	tracer   trace.Tracer
}

// NewPublisher connects a producer to cfg.Brokers.
func NewPublisher(cfg Config, tracer trace.Tracer) (*Publisher, error) {
	p, err := kafka.NewProducer(cfg.producerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return &Publisher{producer: p, tracer: tracer}, nil
}

// Publish writes body to the topic named queueName.
func (p *Publisher) Publish(ctx context.Context, queueName string, body []byte) error {
	ctx, span := p.tracer.Start(ctx, "kafka.Publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("topic", queueName),
			attribute.Int("body_size", len(body)),
		))
	defer span.End()

	topic := queueName
	events := make(chan kafka.Event, 1)
	err := p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          body,
	}, events)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "produce failed")
		return fmt.Errorf("failed to produce message (%s): %w", queueName, err)
	}

	select {
	case ev := <-events:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event (%s): %v", queueName, ev)
		}
		if m.TopicPartition.Error != nil {
			span.RecordError(m.TopicPartition.Error)
			span.SetStatus(codes.Error, "delivery failed")
			return fmt.Errorf("failed to deliver message (%s): %w", queueName, m.TopicPartition.Error)
		}
		span.SetAttributes(
			attribute.Int("partition", int(m.TopicPartition.Partition)),
			attribute.Int64("offset", int64(m.TopicPartition.Offset)),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes pending messages for up to timeout.
func (p *Publisher) Close(timeout time.Duration) {
	p.producer.Flush(int(timeout.Milliseconds()))
	p.producer.Close()
}

var _ queue.Consumer = (*Consumer)(nil)

// Consumer reads one topic as a member of cfg.GroupID. Offsets are committed
// only on Ack, and only up to the oldest message still being handled, so
// concurrent handlers may ack in any order.
type Consumer struct {
	cfg Config

	mu       sync.Mutex
	consumer *kafka.Consumer
	topic    string
	closed   bool
	offsets  *offsetTracker

	logger *logger.Logger
	tracer trace.Tracer
}

// NewConsumer creates a consumer; it subscribes on the first Receive.
func NewConsumer(cfg Config, log *logger.Logger, tracer trace.Tracer) (*Consumer, error) {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	c, err := kafka.NewConsumer(cfg.consumerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	return &Consumer{
		cfg:      cfg,
		consumer: c,
		offsets:  newOffsetTracker(),
		logger:   log.Named("kafka_consumer"),
		tracer:   tracer,
	}, nil
}

func (c *Consumer) subscribe(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return queue.ErrClosed
	}
	if c.topic == topic {
		return nil
	}
	if c.topic != "" {
		return fmt.Errorf("consumer already subscribed to %s, cannot receive from %s", c.topic, topic)
	}
	if err := c.consumer.SubscribeTopics([]string{topic}, c.rebalance); err != nil {
		return fmt.Errorf("failed to subscribe (%s): %w", topic, err)
	}
	c.topic = topic
	return nil
}

// rebalance runs inside ReadMessage while c.mu is held, so it only touches
// the offset tracker.
func (c *Consumer) rebalance(_ *kafka.Consumer, ev kafka.Event) error {
	if revoked, ok := ev.(kafka.RevokedPartitions); ok {
		c.offsets.revoke(revoked.Partitions)
	}
	return nil
}

// Receive blocks until a message arrives on the topic named queueName.
func (c *Consumer) Receive(ctx context.Context, queueName string) (queue.Delivery, error) {
	if err := c.subscribe(queueName); err != nil {
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, queue.ErrClosed
		}
		msg, err := c.consumer.ReadMessage(c.cfg.PollTimeout)
		c.mu.Unlock()

		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			return nil, fmt.Errorf("failed to read message (%s): %w", queueName, err)
		}

		_, span := c.tracer.Start(ctx, "kafka.Receive",
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("topic", queueName),
				attribute.Int("partition", int(msg.TopicPartition.Partition)),
				attribute.Int64("offset", int64(msg.TopicPartition.Offset)),
			))
		span.End()

		c.offsets.track(keyOf(msg.TopicPartition), msg.TopicPartition.Offset)
		return &delivery{c: c, msg: msg}, nil
	}
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.consumer.Close()
}

type delivery struct {
	c   *Consumer
	msg *kafka.Message
}

func (d *delivery) Body() []byte {
	return d.msg.Value
}

// Ack marks the message handled and commits the partition up to the oldest
// message still in flight.
func (d *delivery) Ack(context.Context) error {
	commit, ok := d.c.offsets.ack(keyOf(d.msg.TopicPartition), d.msg.TopicPartition.Offset)
	if !ok {
		return nil
	}

	d.c.mu.Lock()
	defer d.c.mu.Unlock()

	tp := d.msg.TopicPartition
	tp.Offset = commit
	tp.Error = nil
	if _, err := d.c.consumer.CommitOffsets([]kafka.TopicPartition{tp}); err != nil {
		return fmt.Errorf("failed to commit offset (%s): %w", tp, err)
	}
	return nil
}

// Nack rewinds the partition so the message is read again.
func (d *delivery) Nack(ctx context.Context) error {
	d.c.mu.Lock()
	defer d.c.mu.Unlock()

	if err := d.c.consumer.Seek(d.msg.TopicPartition, int(d.c.cfg.PollTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to rewind (%s): %w", d.msg.TopicPartition, err)
	}
	d.c.logger.Warn(ctx, "message rewound",
		"topic", d.c.topic,
		"partition", d.msg.TopicPartition.Partition,
		"offset", d.msg.TopicPartition.Offset,
	)
	return nil
}
