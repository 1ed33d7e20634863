package workflow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/operino-hub/internal/application/seed"
	"github.com/ahrav/operino-hub/internal/domain/cdr"
	"github.com/ahrav/operino-hub/internal/domain/operino"
	"github.com/ahrav/operino-hub/internal/domain/patient"
	"github.com/ahrav/operino-hub/pkg/common/logger"
	"github.com/ahrav/operino-hub/pkg/common/timeutil"
)

// Step names of a provisioning run.
const (
	StepCreateDomain    = "create-domain"
	StepCreateUser      = "create-user"
	StepUploadTemplates = "upload-templates"
	StepSeedPatients    = "seed-patients"
	StepFinalize        = "finalize"
)

// ProvisioningConfig holds the read-only settings shared by every run.
type ProvisioningConfig struct {
	SubjectNamespace string
	AgentName        string
	Templates        seed.TemplateSet
	Manifest         seed.Manifest
}

// PatientFailure records a patient whose seeding was abandoned.
type PatientFailure struct {
	NHSNumber string `json:"nhs_number"`
	Stage     string `json:"stage"`
	Error     string `json:"error"`
}

// SeedingReport summarizes the demo data written to a domain.
type SeedingReport struct {
	Patients     int              `json:"patients"`
	Seeded       int              `json:"seeded"`
	Failed       int              `json:"failed"`
	Compositions int              `json:"compositions"`
	Failures     []PatientFailure `json:"failures,omitempty"`
}

// Outcome is the result of provisioning one task.
type Outcome struct {
	Task operino.ProvisioningTask
	// State is StateComplete or StateFailed.
	State State
	// Reached is the last state entered before the run ended.
	Reached           State
	FailedStep        string
	Err               error
	TemplatesUploaded int
	Seeding           SeedingReport
	StepResults       []StepResult
	Duration          time.Duration
}

// Succeeded reports whether the run completed.
func (o Outcome) Succeeded() bool { return o.State == StateComplete }

// Result renders the outcome for the operation record.
func (o Outcome) Result() map[string]any {
	res := map[string]any{
		"state":              string(o.State),
		"reached":            string(o.Reached),
		"templates_uploaded": o.TemplatesUploaded,
		"duration_ms":        o.Duration.Milliseconds(),
	}
	if o.Task.Provision {
		res["seeding"] = map[string]any{
			"patients":     o.Seeding.Patients,
			"seeded":       o.Seeding.Seeded,
			"failed":       o.Seeding.Failed,
			"compositions": o.Seeding.Compositions,
		}
	}
	if o.FailedStep != "" {
		res["failed_step"] = o.FailedStep
	}
	return res
}

// ProvisioningWorkflow drives a task through domain creation, user creation,
// template upload and optional patient seeding. Calls are strictly
// sequential and a failed step is never compensated.
type ProvisioningWorkflow struct {
	client   cdr.Client
	patients []patient.Patient
	cfg      ProvisioningConfig
	clock    timeutil.Provider

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics ProvisioningMetrics
}

// NewProvisioningWorkflow creates the orchestrator. The patient slice is
// shared read-only between concurrent runs.
func NewProvisioningWorkflow(
	client cdr.Client,
	patients []patient.Patient,
	cfg ProvisioningConfig,
	clock timeutil.Provider,
	log *logger.Logger,
	tracer trace.Tracer,
	metrics ProvisioningMetrics,
) *ProvisioningWorkflow {
	if clock == nil {
		clock = timeutil.Default()
	}
	return &ProvisioningWorkflow{
		client:   client,
		patients: patients,
		cfg:      cfg,
		clock:    clock,
		logger:   log.Named("provisioning_workflow"),
		tracer:   tracer,
		metrics:  metrics,
	}
}

// run holds the state local to one task.
type run struct {
	w      *ProvisioningWorkflow
	task   operino.ProvisioningTask
	auth   cdr.Auth
	state  State
	out    *Outcome
	logger *logger.LoggerContext
}

func (r *run) enter(ctx context.Context, next State) error {
	if !r.state.CanTransition(next) {
		return fmt.Errorf("illegal transition %s -> %s", r.state, next)
	}
	r.state = next
	r.out.Reached = next
	trace.SpanFromContext(ctx).AddEvent("state " + string(next))
	r.logger.Debug(ctx, "state entered", "state", next)
	return nil
}

// Run provisions a single task and returns its outcome. It never panics on
// remote failures; the outcome carries the error and the state reached.
func (w *ProvisioningWorkflow) Run(ctx context.Context, task operino.ProvisioningTask) Outcome {
	start := w.clock.Now()
	lc := logger.NewLoggerContext(w.logger.With(
		"task_id", task.ID,
		"operino_id", task.OperinoID,
		"domain", task.Domain,
		"provision", task.Provision,
	))
	ctx, span := w.tracer.Start(ctx, "ProvisioningWorkflow.Run", trace.WithAttributes(
		attribute.String("task_id", task.ID),
		attribute.Int64("operino_id", task.OperinoID),
		attribute.String("domain", task.Domain),
		attribute.Bool("provision", task.Provision),
	))
	defer span.End()

	w.metrics.AddInFlight(ctx, 1)
	defer w.metrics.AddInFlight(ctx, -1)

	out := Outcome{Task: task, Reached: StateReceived}
	r := &run{w: w, task: task, auth: w.client.ServiceAuth(), state: StateReceived, out: &out, logger: lc}

	steps := []Step{
		{Name: StepCreateDomain, Description: "Create the CDR domain", Execute: r.createDomain},
		{Name: StepCreateUser, Description: "Create the domain administrator", Execute: r.createUser},
		{Name: StepUploadTemplates, Description: "Upload clinical templates", Execute: r.uploadTemplates},
		{Name: StepSeedPatients, Description: "Seed synthetic patients", Execute: r.seedPatients},
		{Name: StepFinalize, Description: "Mark provisioning complete", Execute: r.finalize},
	}
	observer := func(ctx context.Context, sr StepResult) {
		w.metrics.ObserveProvisioningStageDuration(ctx, sr.StepName, sr.Success, sr.Duration)
	}

	lc.Info(ctx, "provisioning started")
	result := NewBaseWorkflow(steps, w.clock, observer).ExecuteSteps(ctx)

	out.StepResults = result.StepResults
	out.Duration = timeutil.Since(w.clock, start)

	if !result.Success {
		out.State = StateFailed
		out.FailedStep = result.FailedStep
		out.Err = result.Error
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, "provisioning failed")
		w.metrics.IncProvisioningFailure(ctx, result.FailedStep)
		lc.Error(ctx, "provisioning failed",
			"stage", result.FailedStep,
			"reached", out.Reached,
			"error", result.Error,
		)
		return out
	}

	out.State = StateComplete
	w.metrics.IncProvisioningSuccess(ctx, task.Provision)
	w.metrics.ObserveProvisioningDuration(ctx, task.Provision, out.Duration)
	span.SetStatus(codes.Ok, "provisioning complete")
	lc.Info(ctx, "provisioning complete",
		"templates", out.TemplatesUploaded,
		"patients_seeded", out.Seeding.Seeded,
		"patients_failed", out.Seeding.Failed,
		"duration", out.Duration,
	)
	return out
}

func (r *run) createDomain(ctx context.Context) error {
	if err := r.w.client.CreateDomain(ctx, r.task.Domain, r.task.Name); err != nil {
		return err
	}
	r.logger.Info(ctx, "domain created", "stage", StepCreateDomain)
	return r.enter(ctx, StateDomainCreated)
}

func (r *run) createUser(ctx context.Context) error {
	if err := r.w.client.CreateUser(ctx, r.task.Domain, r.task.User.Username, r.task.User.Password); err != nil {
		return err
	}
	r.logger.Add("domain_user", r.task.User.Username)
	r.logger.Info(ctx, "domain user created", "stage", StepCreateUser)
	return r.enter(ctx, StateUserCreated)
}

func (r *run) uploadTemplates(ctx context.Context) error {
	for _, path := range r.w.cfg.Templates.For(r.task.Provision) {
		if err := r.w.client.UploadTemplate(ctx, r.auth, path); err != nil {
			return fmt.Errorf("failed to upload template (%s): %w", path, err)
		}
		r.out.TemplatesUploaded++
	}
	r.logger.Info(ctx, "templates uploaded", "stage", StepUploadTemplates, "count", r.out.TemplatesUploaded)
	return r.enter(ctx, StateTemplatesUploaded)
}

func (r *run) seedPatients(ctx context.Context) error {
	if !r.task.Provision {
		return r.enter(ctx, StateSkipped)
	}
	if err := r.enter(ctx, StateSeeding); err != nil {
		return err
	}

	report := &r.out.Seeding
	report.Patients = len(r.w.patients)
	for _, p := range r.w.patients {
		n, stage, err := r.seedPatient(ctx, p)
		report.Compositions += n
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, PatientFailure{NHSNumber: p.NHSNumber, Stage: stage, Error: err.Error()})
			r.logger.Error(ctx, "patient seeding abandoned",
				"stage", StepSeedPatients,
				"nhs_number", p.NHSNumber,
				"patient_stage", stage,
				"error", err,
			)
			continue
		}
		report.Seeded++
	}

	r.w.metrics.AddPatientsSeeded(ctx, report.Seeded)
	r.w.metrics.AddPatientsFailed(ctx, report.Failed)
	r.logger.Info(ctx, "patients seeded",
		"stage", StepSeedPatients,
		"seeded", report.Seeded,
		"failed", report.Failed,
		"compositions", report.Compositions,
	)
	return r.enter(ctx, StateSeeded)
}

// seedPatient creates one patient, its EHR and every manifest composition.
// It returns the compositions committed and, on failure, the stage that failed.
func (r *run) seedPatient(ctx context.Context, p patient.Patient) (int, string, error) {
	ctx, span := r.w.tracer.Start(ctx, "ProvisioningWorkflow.seedPatient", trace.WithAttributes(
		attribute.String("nhs_number", p.NHSNumber),
	))
	defer span.End()

	c := r.w.client
	partyID, err := c.CreatePatient(ctx, r.auth, p)
	if err != nil {
		return 0, "create-patient", fail(span, err)
	}

	ehrID, err := c.CreateEhr(ctx, p, r.auth, r.w.cfg.SubjectNamespace, p.NHSNumber, r.w.cfg.AgentName)
	if err != nil {
		return 0, "create-ehr", fail(span, err)
	}
	r.logger.Debug(ctx, "patient created", "nhs_number", p.NHSNumber, "party_id", partyID, "ehr_id", ehrID)

	committed := 0
	for _, entry := range r.w.cfg.Manifest {
		for _, path := range entry.Paths() {
			if _, err := c.CreateComposition(ctx, r.auth, ehrID, entry.TemplateID, r.w.cfg.AgentName, path); err != nil {
				return committed, "create-composition", fail(span, fmt.Errorf("composition %s: %w", path, err))
			}
			committed++
		}
	}
	span.SetAttributes(attribute.Int("compositions", committed))
	return committed, "", nil
}

func (r *run) finalize(ctx context.Context) error {
	return r.enter(ctx, StateComplete)
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
