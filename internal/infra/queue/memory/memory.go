// Package memory provides an in-process queue used by tests and single
// binary deployments.
package memory

import (
	"context"
	"sync"

	"github.com/ahrav/operino-hub/internal/domain/queue"
)

const defaultBuffer = 1024

var (
	_ queue.Publisher = (*Queue)(nil)
	_ queue.Consumer  = (*Queue)(nil)
)

// Queue is a set of named buffered channels. Messages do not survive the
// process.
type Queue struct {
	mu     sync.Mutex
	queues map[string]chan []byte
	buffer int

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a queue whose named queues hold up to buffer messages each
// before Publish blocks.
func New(buffer int) *Queue {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Queue{
		queues: make(map[string]chan []byte),
		buffer: buffer,
		closed: make(chan struct{}),
	}
}

func (q *Queue) get(name string) chan []byte {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch, ok := q.queues[name]
	if !ok {
		ch = make(chan []byte, q.buffer)
		q.queues[name] = ch
	}
	return ch
}

// Publish enqueues a copy of body.
func (q *Queue) Publish(ctx context.Context, name string, body []byte) error {
	msg := append([]byte(nil), body...)
	select {
	case <-q.closed:
		return queue.ErrClosed
	default:
	}

	select {
	case q.get(name) <- msg:
		return nil
	case <-q.closed:
		return queue.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks until a message is available on the named queue.
func (q *Queue) Receive(ctx context.Context, name string) (queue.Delivery, error) {
	select {
	case msg := <-q.get(name):
		return &delivery{q: q, queue: name, body: msg}, nil
	case <-q.closed:
		return nil, queue.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of messages waiting on the named queue.
func (q *Queue) Len(name string) int {
	return len(q.get(name))
}

// Close wakes every blocked Receive and Publish. It is safe to call more
// than once.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() { close(q.closed) })
	return nil
}

type delivery struct {
	q     *Queue
	queue string
	body  []byte

	once sync.Once
}

func (d *delivery) Body() []byte {
	return d.body
}

func (d *delivery) Ack(context.Context) error {
	d.once.Do(func() {})
	return nil
}

// Nack puts the message back at the tail of its queue.
func (d *delivery) Nack(ctx context.Context) error {
	var err error
	d.once.Do(func() { err = d.q.Publish(ctx, d.queue, d.body) })
	return err
}
