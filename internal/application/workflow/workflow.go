package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/operino-hub/pkg/common/timeutil"
)

// Step represents a single executable unit in a workflow.
type Step struct {
	Name        string
	Description string
	Execute     func(ctx context.Context) error
}

// WorkflowResult contains the consolidated outcome of a workflow execution.
type WorkflowResult struct {
	Success     bool
	CompletedAt time.Time
	Error       error
	// FailedStep names the step that stopped the run, if any.
	FailedStep  string
	StepResults []StepResult
}

// StepResult tracks the execution result of an individual workflow step.
type StepResult struct {
	StepName    string
	Success     bool
	Error       error
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
}

// StepObserver is notified after every executed step.
type StepObserver func(ctx context.Context, r StepResult)

// BaseWorkflow runs steps strictly in order on the caller's goroutine.
type BaseWorkflow struct {
	steps    []Step
	clock    timeutil.Provider
	observer StepObserver
}

// NewBaseWorkflow creates a new base workflow with the provided execution steps.
func NewBaseWorkflow(steps []Step, clock timeutil.Provider, observer StepObserver) *BaseWorkflow {
	if clock == nil {
		clock = timeutil.Default()
	}
	return &BaseWorkflow{steps: steps, clock: clock, observer: observer}
}

// ExecuteSteps runs all steps in sequence and stops at the first failure.
// Later steps of a failed run are never attempted.
func (w *BaseWorkflow) ExecuteSteps(ctx context.Context) WorkflowResult {
	result := WorkflowResult{
		Success:     true,
		StepResults: make([]StepResult, 0, len(w.steps)),
	}

	for _, step := range w.steps {
		stepResult := StepResult{
			StepName:  step.Name,
			StartedAt: w.clock.Now(),
		}

		err := step.Execute(ctx)

		stepResult.CompletedAt = w.clock.Now()
		stepResult.Duration = stepResult.CompletedAt.Sub(stepResult.StartedAt)
		stepResult.Success = err == nil
		stepResult.Error = err
		result.StepResults = append(result.StepResults, stepResult)
		if w.observer != nil {
			w.observer(ctx, stepResult)
		}

		if err != nil {
			result.Success = false
			result.FailedStep = step.Name
			result.Error = fmt.Errorf("step %s failed: %w", step.Name, err)
			break
		}
	}

	result.CompletedAt = w.clock.Now()
	return result
}
