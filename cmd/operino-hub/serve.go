package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	operationApp "github.com/ahrav/operino-hub/internal/application/operation"
	operinoApp "github.com/ahrav/operino-hub/internal/application/operino"
	"github.com/ahrav/operino-hub/internal/application/sdk/mux"
	"github.com/ahrav/operino-hub/internal/config"
	httpadapter "github.com/ahrav/operino-hub/internal/infra/adapters/http"
	httphandler "github.com/ahrav/operino-hub/internal/infra/adapters/http/handler"
	"github.com/ahrav/operino-hub/internal/infra/storage"
	opstore "github.com/ahrav/operino-hub/internal/infra/storage/operation/postgres"
	operinostore "github.com/ahrav/operino-hub/internal/infra/storage/operino/postgres"
	"github.com/ahrav/operino-hub/pkg/common/logger"
	"github.com/ahrav/operino-hub/pkg/common/timeutil"
)

func serveCmd(cfgFile *string) *cobra.Command {
	var (
		withWorker bool
		migrateDB  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Operino API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(*cfgFile, withWorker, migrateDB)
		},
	}
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "also consume provisioning tasks in this process")
	cmd.Flags().BoolVar(&migrateDB, "migrate", true, "apply pending migrations before serving")
	return cmd
}

func runServe(cfgFile string, withWorker, migrateDB bool) error {
	a, err := newApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.log.Info(ctx, "starting operino api", "build", build, "addr", a.cfg.HTTP.Addr)
	a.startDebug(ctx)

	pool, err := a.openPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if migrateDB {
		if err := storage.MigrateUp(pool); err != nil {
			return err
		}
	}

	// The in-process queue is only reachable from this process.
	if a.cfg.Queue.Driver == config.QueueDriverMemory {
		withWorker = true
	}

	pub, cons, closeQueues, err := a.queues(pool, withWorker)
	if err != nil {
		return err
	}
	defer closeQueues()

	operinoRepo := operinostore.NewOperinoStore(pool, a.tracer)
	operationRepo := opstore.NewOperationStore(pool, a.tracer)

	operinoService := operinoApp.NewService(
		operinoRepo,
		operationRepo,
		a.cdrClient(),
		pub,
		operinoApp.Config{
			TaskQueue:         a.cfg.Queue.Tasks,
			DefaultComponents: a.cfg.Operino.DefaultComponents,
		},
		operinoApp.GeneratePassword,
		timeutil.Default(),
		a.metrics.Operino,
		a.log,
		a.tracer,
	)
	operationService := operationApp.NewService(operationRepo, timeutil.Default(), a.log, a.tracer)

	router := httpadapter.NewRouter(
		httphandler.NewOperinoHandler(operinoService),
		httphandler.NewOperationHandler(operationService),
		a.log,
	)

	server := &http.Server{
		Addr: a.cfg.HTTP.Addr,
		Handler: mux.WrapWithMiddleware(mux.Config{
			Build:      build,
			Log:        a.log,
			DB:         pool,
			Tracer:     a.tracer,
			APIMetrics: a.metrics.API,
		}, router),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     logger.NewStdLogger(a.log.Named("http_server"), logger.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info(gctx, "http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info(context.Background(), "shutting down http server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if withWorker {
		if a.cfg.Queue.Driver == config.QueueDriverMemory {
			go drainNotifications(gctx, a, cons)
		}
		worker, err := buildWorker(gctx, a, pool, pub, cons)
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		g.Go(func() error { return worker.Run(gctx) })
	}

	err = g.Wait()
	a.log.Info(context.Background(), "operino api stopped")
	return err
}
