package operation

import (
	"errors"
	"fmt"
	"time"
)

// Common errors that can be returned by operation functions.
var (
	ErrOperationNotFound  = errors.New("operation not found")
	ErrOperationFailed    = errors.New("operation failed")
	ErrOperationCancelled = errors.New("operation cancelled")
	ErrOperationCompleted = errors.New("operation completed")
)

// Op represents the kind of asynchronous work an operation tracks.
type Op string

// Supported operation types.
const (
	OpOperinoProvision   Op = "operino.provision"
	OpOperinoDeprovision Op = "operino.deprovision"
)

// IsValid checks if the operation type is one of the supported kinds.
func (t Op) IsValid() bool {
	switch t {
	case OpOperinoProvision, OpOperinoDeprovision:
		return true
	default:
		return false
	}
}

func (t Op) String() string { return string(t) }

// ParseType converts a string to an operation type with validation.
func ParseType(s string) (Op, error) {
	t := Op(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid operation type: %s", s)
	}
	return t, nil
}

// ValidationError reports which field of an operation failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError with the given field and message.
func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// Status represents the current state of an operation.
type Status string

// Lifecycle of an operation.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus converts a string to a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("invalid operation status: %s", s)
	}
}

// Operation tracks one provisioning or deprovisioning run for an Operino so
// callers can poll its progress.
type Operation struct {
	ID           int64
	Type         Op
	Status       Status
	OperinoID    *int64
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	UpdatedAt    *time.Time
	CreatedBy    *string
	ErrorMessage *string
	Parameters   map[string]any
	Result       map[string]any
}

// NewProvisionOperation creates the operation tracking one provisioning task.
func NewProvisionOperation(operinoID int64, taskID, domain string, seed bool) (*Operation, error) {
	params := map[string]any{
		"task_id": taskID,
		"domain":  domain,
		"seed":    seed,
	}
	return NewOperation(OpOperinoProvision, &operinoID, params)
}

// NewDeprovisionOperation creates the operation tracking removal of an
// Operino and the truncation of its domain.
func NewDeprovisionOperation(operinoID int64, domain string) (*Operation, error) {
	params := map[string]any{
		"operino_id": operinoID,
		"domain":     domain,
	}
	return NewOperation(OpOperinoDeprovision, &operinoID, params)
}

// NewOperation creates a pending operation of the given type.
func NewOperation(opType Op, operinoID *int64, params map[string]any) (*Operation, error) {
	if !opType.IsValid() {
		return nil, NewValidationError("type", "invalid operation type")
	}
	if operinoID != nil && *operinoID <= 0 {
		return nil, NewValidationError("operino_id", "must be positive")
	}

	return &Operation{
		Type:       opType,
		OperinoID:  operinoID,
		Status:     StatusPending,
		Parameters: params,
		CreatedAt:  time.Now(),
	}, nil
}

// Start marks the operation as in progress.
func (o *Operation) Start() {
	o.Status = StatusInProgress
	now := time.Now()
	o.StartedAt = &now
	o.UpdatedAt = &now
}

// Complete marks the operation as completed and stores the result.
func (o *Operation) Complete(result map[string]any) {
	o.Status = StatusCompleted
	o.Result = result
	now := time.Now()
	o.CompletedAt = &now
	o.UpdatedAt = &now
}

// Fail marks the operation as failed. A partial result may accompany the
// error, e.g. the provisioning stage reached before the failure.
func (o *Operation) Fail(errMsg string, result map[string]any) {
	o.Status = StatusFailed
	o.ErrorMessage = &errMsg
	if result != nil {
		o.Result = result
	}
	now := time.Now()
	o.CompletedAt = &now
	o.UpdatedAt = &now
}

// Cancel marks the operation as cancelled with the provided reason.
func (o *Operation) Cancel(reason string) {
	o.Status = StatusCancelled
	o.ErrorMessage = &reason
	now := time.Now()
	o.CompletedAt = &now
	o.UpdatedAt = &now
}

// IsTerminal reports whether the operation can no longer change state.
func (o *Operation) IsTerminal() bool {
	return o.Status == StatusCompleted || o.Status == StatusFailed || o.Status == StatusCancelled
}

func (o *Operation) IsInProgress() bool { return o.Status == StatusInProgress }

func (o *Operation) IsPending() bool { return o.Status == StatusPending }

// Duration returns the run time of a started and completed operation, or nil.
func (o *Operation) Duration() *time.Duration {
	if o.StartedAt == nil || o.CompletedAt == nil {
		return nil
	}
	d := o.CompletedAt.Sub(*o.StartedAt)
	return &d
}

// IsStalled reports whether a non-terminal operation has not been updated
// for longer than threshold.
func (o *Operation) IsStalled(now time.Time, threshold time.Duration) bool {
	if o.IsTerminal() {
		return false
	}
	last := o.CreatedAt
	if o.UpdatedAt != nil {
		last = *o.UpdatedAt
	}
	return now.Sub(last) > threshold
}

// IsRetryable checks if a failed operation can be retried. A deprovision
// whose domain was already truncated is not.
func (o *Operation) IsRetryable() bool {
	if o.Status != StatusFailed {
		return false
	}
	if o.Type == OpOperinoDeprovision && o.Result != nil {
		if truncated, ok := o.Result["truncated"].(bool); ok && truncated {
			return false
		}
	}
	return true
}
