// Package queue defines the at-least-once message queue the provisioning
// pipeline is built on.
package queue

import (
	"context"
	"errors"
)

// ErrClosed is returned by consumers and publishers after Close.
var ErrClosed = errors.New("queue closed")

// Delivery is one received message. Exactly one of Ack or Nack must be
// called; an unacknowledged delivery is redelivered.
type Delivery interface {
	Body() []byte
	Ack(ctx context.Context) error
	Nack(ctx context.Context) error
}

// Publisher sends messages to a named queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// Consumer receives messages from a named queue. Receive blocks until a
// message is available or ctx is done.
type Consumer interface {
	Receive(ctx context.Context, queue string) (Delivery, error)
}
