package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/ahrav/operino-hub/internal/application/health"
	"github.com/ahrav/operino-hub/internal/application/notification"
	"github.com/ahrav/operino-hub/internal/application/provisioning"
	"github.com/ahrav/operino-hub/internal/application/seed"
	"github.com/ahrav/operino-hub/internal/application/workflow"
	"github.com/ahrav/operino-hub/internal/config"
	"github.com/ahrav/operino-hub/internal/domain/queue"
	opstore "github.com/ahrav/operino-hub/internal/infra/storage/operation/postgres"
	"github.com/ahrav/operino-hub/pkg/common"
	"github.com/ahrav/operino-hub/pkg/common/timeutil"
	"github.com/ahrav/operino-hub/resources"
)

func workerCmd(cfgFile *string) *cobra.Command {
	var healthAddr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume provisioning tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(*cfgFile, healthAddr)
		},
	}
	cmd.Flags().StringVar(&healthAddr, "health-addr", ":8081", "liveness and readiness listener")
	return cmd
}

func runWorker(cfgFile, healthAddr string) error {
	a, err := newApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.log.Info(ctx, "starting provisioning worker", "build", build, "queue_driver", a.cfg.Queue.Driver)
	a.startDebug(ctx)

	var ready atomic.Bool
	common.NewHealthServer(healthAddr, &ready, a.log).Start(ctx)

	pool, err := a.openPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	pub, cons, closeQueues, err := a.queues(pool, true)
	if err != nil {
		return err
	}
	defer closeQueues()

	if a.cfg.Queue.Driver == config.QueueDriverMemory {
		go drainNotifications(ctx, a, cons)
	}

	worker, err := buildWorker(ctx, a, pool, pub, cons)
	if err != nil {
		return err
	}
	ready.Store(true)

	return worker.Run(ctx)
}

// buildWorker runs the startup check and assembles the provisioning
// pipeline.
func buildWorker(
	ctx context.Context,
	a *app,
	pool *pgxpool.Pool,
	pub queue.Publisher,
	cons queue.Consumer,
) (*provisioning.Worker, error) {
	client := a.cdrClient()
	loader := seed.NewLoader(resources.FS, a.log)

	checker := health.NewChecker(client, loader, a.cfg.Seed.PatientFiles, a.metrics.Health, a.log, a.tracer)
	startup := checker.Startup(ctx)

	wf := workflow.NewProvisioningWorkflow(
		client,
		startup.Patients,
		workflow.ProvisioningConfig{
			SubjectNamespace: a.cfg.CDR.SubjectNamespace,
			AgentName:        a.cfg.CDR.AgentName,
			Templates:        a.cfg.Seed.Templates,
			Manifest:         a.cfg.Seed.Manifest,
		},
		timeutil.Default(),
		a.log,
		a.tracer,
		a.metrics.Provisioning,
	)

	dispatcher := notification.NewDispatcher(pub, notification.Config{
		Queue:            a.cfg.Queue.Notifications,
		BaseURL:          a.cfg.CDR.URL,
		ExplorerURL:      a.cfg.CDR.ExplorerURL,
		SubjectNamespace: a.cfg.CDR.SubjectNamespace,
	}, timeutil.Default(), a.log, a.tracer)

	svc := provisioning.NewService(wf, opstore.NewOperationStore(pool, a.tracer), dispatcher, a.log, a.tracer)

	if cons == nil {
		return nil, fmt.Errorf("queue driver %q has no consumer", a.cfg.Queue.Driver)
	}
	return provisioning.NewWorker(cons, svc, provisioning.WorkerConfig{
		Queue:       a.cfg.Queue.Tasks,
		Concurrency: a.cfg.Worker.Concurrency,
	}, a.log), nil
}

// drainNotifications logs and drops notifications published to the
// in-process queue, which has no downstream consumer.
func drainNotifications(ctx context.Context, a *app, cons queue.Consumer) {
	log := a.log.Named("notification_sink")
	for {
		d, err := cons.Receive(ctx, a.cfg.Queue.Notifications)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				log.Info(ctx, "notification sink stopped", "reason", err)
				return
			}
			log.Error(ctx, "notification sink stopped on receive error", "error", err)
			return
		}
		log.Info(ctx, "notification published", "size", len(d.Body()))
		if err := d.Ack(ctx); err != nil {
			log.Warn(ctx, "failed to ack notification", "error", err)
		}
	}
}
