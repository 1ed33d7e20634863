package operino

import (
	"time"

	"github.com/ahrav/operino-hub/internal/domain/operino"
)

// OwnerRequest identifies the user creating an Operino.
type OwnerRequest struct {
	Login     string `json:"login" validate:"required,max=50"`
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name,omitempty" validate:"max=50"`
	LastName  string `json:"last_name,omitempty" validate:"max=50"`
}

// ComponentRequest describes a component supplied at creation time.
type ComponentRequest struct {
	Type              string `json:"type" validate:"required,oneof=cdr demographics"`
	Availability      bool   `json:"availability"`
	Hosting           string `json:"hosting" validate:"required,oneof=n3 non_n3"`
	DiskSpace         int64  `json:"disk_space" validate:"gte=0"`
	RecordsNumber     int64  `json:"records_number" validate:"gte=0"`
	TransactionsLimit int64  `json:"transactions_limit" validate:"gte=0"`
}

// CreateOperinoRequest represents input for Operino creation.
type CreateOperinoRequest struct {
	Name       string             `json:"name" validate:"required,max=100"`
	Domain     string             `json:"domain" validate:"required,max=63"`
	Provision  bool               `json:"provision"`
	Owner      OwnerRequest       `json:"owner" validate:"required"`
	Components []ComponentRequest `json:"components,omitempty" validate:"dive"`
}

// Params converts the request into service parameters.
func (r CreateOperinoRequest) Params() CreateParams {
	components := make([]operino.Component, 0, len(r.Components))
	for _, c := range r.Components {
		components = append(components, operino.Component{
			Type:              operino.ComponentType(c.Type),
			Availability:      c.Availability,
			Hosting:           operino.HostingType(c.Hosting),
			DiskSpace:         c.DiskSpace,
			RecordsNumber:     c.RecordsNumber,
			TransactionsLimit: c.TransactionsLimit,
		})
	}
	return CreateParams{
		Name:   r.Name,
		Domain: r.Domain,
		Owner: operino.Owner{
			Login:     r.Owner.Login,
			Email:     r.Owner.Email,
			FirstName: r.Owner.FirstName,
			LastName:  r.Owner.LastName,
		},
		Provision:  r.Provision,
		Components: components,
	}
}

// OperinoCreatedResponse represents output from Operino creation
type OperinoCreatedResponse struct {
	OperinoID int64             `json:"operino_id"`
	Domain    string            `json:"domain"`
	TaskID    string            `json:"task_id"`
	Status    string            `json:"status"`
	Links     map[string]string `json:"_links"`
}

// OperinoResponse is the read model of an Operino.
type OperinoResponse struct {
	ID         int64               `json:"id"`
	Name       string              `json:"name"`
	Domain     string              `json:"domain"`
	Owner      operino.Owner       `json:"owner"`
	Active     bool                `json:"active"`
	Provision  bool                `json:"provision"`
	Components []operino.Component `json:"components"`
	CreatedAt  time.Time           `json:"created_at"`
	Links      map[string]string   `json:"_links"`
}

// NewOperinoResponse builds the read model for o.
func NewOperinoResponse(o *operino.Operino, links map[string]string) OperinoResponse {
	components := o.Components
	if components == nil {
		components = []operino.Component{}
	}
	return OperinoResponse{
		ID:         o.ID,
		Name:       o.Name,
		Domain:     o.Domain,
		Owner:      o.Owner,
		Active:     o.Active,
		Provision:  o.Provision,
		Components: components,
		CreatedAt:  o.CreatedAt,
		Links:      links,
	}
}

// AsyncOperationResponse represents an async operation response
type AsyncOperationResponse struct {
	OperationID int64             `json:"operation_id"`
	Status      string            `json:"status"`
	OperinoID   *int64            `json:"operino_id,omitempty"`
	Links       map[string]string `json:"_links"`
}
