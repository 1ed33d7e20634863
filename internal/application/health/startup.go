// Package health verifies the external dependencies at process start.
package health

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/operino-hub/internal/domain/cdr"
	"github.com/ahrav/operino-hub/internal/domain/patient"
	"github.com/ahrav/operino-hub/pkg/common/logger"
)

// PatientLoader loads the bundled seed patients.
type PatientLoader interface {
	Load(ctx context.Context, count int) []patient.Patient
}

// StartupResult reports what the startup check found.
type StartupResult struct {
	Healthy  bool
	Domains  int
	Patients []patient.Patient
}

// Checker runs the startup check.
type Checker struct {
	client       cdr.Client
	loader       PatientLoader
	patientFiles int
	metrics      HealthMetrics

	logger *logger.Logger
	tracer trace.Tracer
}

// NewChecker creates a startup checker loading patientFiles seed files.
func NewChecker(
	client cdr.Client,
	loader PatientLoader,
	patientFiles int,
	metrics HealthMetrics,
	log *logger.Logger,
	tracer trace.Tracer,
) *Checker {
	return &Checker{
		client:       client,
		loader:       loader,
		patientFiles: patientFiles,
		metrics:      metrics,
		logger:       log.Named("startup_check"),
		tracer:       tracer,
	}
}

// Check verifies the repository's domain listing is reachable with the
// configured service account.
func (c *Checker) Check(ctx context.Context) (int, error) {
	domains, err := c.client.ListDomains(ctx)
	if err != nil {
		c.metrics.SetSystemHealth(ctx, false)
		return 0, err
	}
	c.metrics.SetSystemHealth(ctx, true)
	return len(domains), nil
}

// Startup checks connectivity and loads the seed patients. An unreachable
// repository is logged and never stops the process: tasks will fail at
// their first remote call until it recovers. Patients are loaded either way.
func (c *Checker) Startup(ctx context.Context) StartupResult {
	ctx, span := c.tracer.Start(ctx, "health.Startup")
	defer span.End()

	var res StartupResult
	n, err := c.Check(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cdr unreachable")
		c.logger.Error(ctx, "unable to connect to clinical data repository", "error", err)
	} else {
		res.Healthy = true
		res.Domains = n
		c.logger.Info(ctx, "clinical data repository reachable", "domains", n)
	}

	res.Patients = c.loader.Load(ctx, c.patientFiles)
	span.SetAttributes(
		attribute.Bool("healthy", res.Healthy),
		attribute.Int("patients", len(res.Patients)),
	)
	return res
}
