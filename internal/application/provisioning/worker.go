package provisioning

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/operino-hub/internal/application/workflow"
	"github.com/ahrav/operino-hub/internal/domain/operino"
	"github.com/ahrav/operino-hub/internal/domain/queue"
	"github.com/ahrav/operino-hub/pkg/common/logger"
)

// TaskHandler processes one decoded task.
type TaskHandler interface {
	Handle(ctx context.Context, task operino.ProvisioningTask) workflow.Outcome
}

// WorkerConfig controls task consumption.
type WorkerConfig struct {
	Queue       string
	Concurrency int
	// MaxReceiveBackoff caps the wait after consecutive receive errors.
	MaxReceiveBackoff time.Duration
}

// Worker pulls provisioning tasks from a queue. Each delivery is handled by
// exactly one goroutine and acknowledged once handled, whatever the outcome;
// failed tasks are not retried.
type Worker struct {
	consumer queue.Consumer
	handler  TaskHandler
	cfg      WorkerConfig
	logger   *logger.Logger
}

// NewWorker creates a worker. Concurrency below one is treated as one.
func NewWorker(consumer queue.Consumer, handler TaskHandler, cfg WorkerConfig, log *logger.Logger) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxReceiveBackoff <= 0 {
		cfg.MaxReceiveBackoff = 30 * time.Second
	}
	return &Worker{consumer: consumer, handler: handler, cfg: cfg, logger: log.Named("provisioning_worker")}
}

// Run consumes until ctx is cancelled or the queue is closed. Tasks already
// being handled run to completion.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info(ctx, "worker started", "queue", w.cfg.Queue, "concurrency", w.cfg.Concurrency)

	g, ctx := errgroup.WithContext(ctx)
	for i := range w.cfg.Concurrency {
		g.Go(func() error { return w.loop(ctx, i) })
	}
	err := g.Wait()

	w.logger.Info(context.Background(), "worker stopped", "queue", w.cfg.Queue)
	return err
}

func (w *Worker) loop(ctx context.Context, id int) error {
	log := w.logger.With("worker", id)

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = w.cfg.MaxReceiveBackoff
	bo.MaxElapsedTime = 0

	for {
		d, err := w.consumer.Receive(ctx, w.cfg.Queue)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return nil
			}
			wait := bo.NextBackOff()
			log.Error(ctx, "error receiving task", "error", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()

		w.process(ctx, log, d)
	}
}

// process handles a delivery detached from ctx so shutdown never interrupts
// a task midway.
func (w *Worker) process(ctx context.Context, log *logger.Logger, d queue.Delivery) {
	hctx := context.WithoutCancel(ctx)

	task, err := operino.DecodeTask(d.Body())
	if err != nil {
		log.Error(hctx, "discarding malformed task", "error", err, "size", len(d.Body()))
		if err := d.Ack(hctx); err != nil {
			log.Error(hctx, "error acknowledging malformed task", "error", err)
		}
		return
	}

	out := w.handler.Handle(hctx, task)

	if err := d.Ack(hctx); err != nil {
		log.Error(hctx, "error acknowledging task", "task_id", task.ID, "state", out.State, "error", err)
	}
}
