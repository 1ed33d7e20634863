package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/operino-hub/internal/config"
	"github.com/ahrav/operino-hub/internal/domain/queue"
	cdradapter "github.com/ahrav/operino-hub/internal/infra/adapters/cdr"
	"github.com/ahrav/operino-hub/internal/infra/metrics"
	"github.com/ahrav/operino-hub/internal/infra/queue/kafka"
	"github.com/ahrav/operino-hub/internal/infra/queue/memory"
	pgqueue "github.com/ahrav/operino-hub/internal/infra/queue/postgres"
	"github.com/ahrav/operino-hub/pkg/common/debug"
	"github.com/ahrav/operino-hub/pkg/common/logger"
	commonotel "github.com/ahrav/operino-hub/pkg/common/otel"
	"github.com/ahrav/operino-hub/resources"
)

const shutdownTimeout = 10 * time.Second

// app holds what every subcommand needs.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	tracer  trace.Tracer
	metrics *metrics.Registry

	shutdownTelemetry func(context.Context)
}

func newApp(cfgFile string) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	log := logger.New(os.Stdout, cfg.LogLevel(), serviceName, commonotel.GetTraceID)

	var (
		tp       trace.TracerProvider
		shutdown func(context.Context)
	)
	if cfg.Otel.Enabled {
		tp, shutdown, err = commonotel.InitTelemetry(log, commonotel.Config{
			ServiceName:      serviceName,
			ExporterEndpoint: cfg.Otel.Endpoint,
			ExcludedRoutes: map[string]struct{}{
				"/api/v1/health/liveness":  {},
				"/api/v1/health/readiness": {},
			},
			Probability:        cfg.Otel.Probability,
			ResourceAttributes: map[string]string{"build": build},
			InsecureExporter:   true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init telemetry: %w", err)
		}
	} else {
		tp, shutdown = commonotel.Disabled()
	}

	registry, err := metrics.NewRegistry(commonotel.GetMeterProvider())
	if err != nil {
		shutdown(context.Background())
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	return &app{
		cfg:               cfg,
		log:               log,
		tracer:            tp.Tracer(serviceName),
		metrics:           registry,
		shutdownTelemetry: shutdown,
	}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.shutdownTelemetry(ctx)
}

func (a *app) openPool(ctx context.Context) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(a.cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db config: %w", err)
	}
	poolCfg.MinConns = a.cfg.Database.MinConns
	poolCfg.MaxConns = a.cfg.Database.MaxConns
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return pool, nil
}

func (a *app) cdrClient() *cdradapter.Client {
	return cdradapter.NewClient(cdradapter.Config{
		BaseURL:   a.cfg.CDR.URL,
		DomainURL: a.cfg.CDR.DomainURL,
		Username:  a.cfg.CDR.Username,
		Password:  a.cfg.CDR.Password,
		Timeout:   a.cfg.CDR.Timeout,
	}, resources.FS, a.log, a.tracer)
}

// queues opens the publisher and, when consume is set, the task consumer of
// the configured driver. The returned func releases both.
func (a *app) queues(pool *pgxpool.Pool, consume bool) (queue.Publisher, queue.Consumer, func(), error) {
	switch a.cfg.Queue.Driver {
	case config.QueueDriverPostgres:
		q := pgqueue.New(pool, pgqueue.Config{
			Lease:        a.cfg.Queue.Lease,
			PollInterval: a.cfg.Queue.PollInterval,
		}, a.log, a.tracer)
		return q, q, func() {}, nil

	case config.QueueDriverKafka:
		kcfg := kafka.Config{Brokers: a.cfg.Kafka.Brokers, GroupID: a.cfg.Kafka.GroupID}
		pub, err := kafka.NewPublisher(kcfg, a.tracer)
		if err != nil {
			return nil, nil, nil, err
		}
		if !consume {
			return pub, nil, func() { pub.Close(shutdownTimeout) }, nil
		}
		cons, err := kafka.NewConsumer(kcfg, a.log, a.tracer)
		if err != nil {
			pub.Close(shutdownTimeout)
			return nil, nil, nil, err
		}
		return pub, cons, func() {
			_ = cons.Close()
			pub.Close(shutdownTimeout)
		}, nil

	case config.QueueDriverMemory:
		q := memory.New(0)
		return q, q, func() { _ = q.Close() }, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown queue driver %q", a.cfg.Queue.Driver)
}

// startDebug serves pprof and statsviz on the debug address, if any.
func (a *app) startDebug(ctx context.Context) {
	if a.cfg.Debug.Addr == "" {
		return
	}
	mux, err := debug.Mux()
	if err != nil {
		a.log.Error(ctx, "debug server disabled", "error", err)
		return
	}
	go func() {
		a.log.Info(ctx, "debug server listening", "addr", a.cfg.Debug.Addr)
		srv := &http.Server{Addr: a.cfg.Debug.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error(ctx, "debug server error", "error", err)
		}
	}()
}
