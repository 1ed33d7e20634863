package operino

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DomainUser holds the credentials of the administrative user created inside
// an Operino's domain.
type DomainUser struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ProvisioningTask is the queue message describing one Operino to provision.
// It is an immutable snapshot taken when the Operino is created.
type ProvisioningTask struct {
	ID         string     `json:"id" validate:"required,uuid"`
	OperinoID  int64      `json:"operino_id" validate:"required,gt=0"`
	Name       string     `json:"name" validate:"required"`
	Domain     string     `json:"domain" validate:"required,max=63"`
	Owner      Owner      `json:"owner"`
	User       DomainUser `json:"user"`
	Provision  bool       `json:"provision"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
}

// NewProvisioningTask snapshots a persisted Operino together with the
// generated password for its domain user.
func NewProvisioningTask(o *Operino, password string, now time.Time) (ProvisioningTask, error) {
	t := ProvisioningTask{
		ID:        uuid.NewString(),
		OperinoID: o.ID,
		Name:      o.Name,
		Domain:    o.Domain,
		Owner:     o.Owner,
		User: DomainUser{
			Username: o.DomainUsername(),
			Password: password,
		},
		Provision:  o.Provision,
		EnqueuedAt: now,
	}
	if err := t.Validate(); err != nil {
		return ProvisioningTask{}, err
	}
	return t, nil
}

// Validate checks the task's structural invariants.
func (t ProvisioningTask) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid provisioning task: %w", err)
	}
	if !IsValidDomain(t.Domain) {
		return fmt.Errorf("invalid provisioning task: %w", ErrInvalidDomain)
	}
	return nil
}

// Encode serializes the task for the queue.
func (t ProvisioningTask) Encode() ([]byte, error) { return json.Marshal(t) }

// DecodeTask parses and validates a queued task.
func DecodeTask(body []byte) (ProvisioningTask, error) {
	var t ProvisioningTask
	if err := json.Unmarshal(body, &t); err != nil {
		return ProvisioningTask{}, fmt.Errorf("failed to decode provisioning task: %w", err)
	}
	if err := t.Validate(); err != nil {
		return ProvisioningTask{}, err
	}
	return t, nil
}

// Config returns the connection details handed to the Operino owner once the
// domain is provisioned.
func (t ProvisioningTask) Config(baseURL string) map[string]string {
	return map[string]string{
		"domain":       t.Domain,
		"system_id":    t.Domain,
		"display_name": t.Owner.DisplayName(),
		"operino_name": t.Name,
		"username":     t.User.Username,
		"password":     t.User.Password,
		"base_url":     baseURL,
	}
}
