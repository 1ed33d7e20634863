package operino

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Common errors
var (
	ErrOperinoNotFound  = errors.New("operino not found")
	ErrDomainTaken      = errors.New("domain already taken")
	ErrInvalidDomain    = errors.New("invalid domain")
	ErrInvalidName      = errors.New("invalid operino name")
	ErrInvalidOwner     = errors.New("invalid operino owner")
	ErrInvalidComponent = errors.New("invalid component")
)

// ComponentType identifies a capability attached to an Operino.
type ComponentType string

// Supported component types
const (
	ComponentCDR          ComponentType = "cdr"
	ComponentDemographics ComponentType = "demographics"
)

// HostingType classifies where a component is hosted.
type HostingType string

// Supported hosting classifications
const (
	HostingN3    HostingType = "n3"
	HostingNonN3 HostingType = "non_n3"
)

// Default quota applied to auto-populated components.
const defaultQuota = 1000

// Component is a named capability owned by exactly one Operino.
type Component struct {
	Type              ComponentType `json:"type"`
	Availability      bool          `json:"availability"`
	Hosting           HostingType   `json:"hosting"`
	DiskSpace         int64         `json:"disk_space"`
	RecordsNumber     int64         `json:"records_number"`
	TransactionsLimit int64         `json:"transactions_limit"`
}

func (c Component) valid() bool {
	switch c.Type {
	case ComponentCDR, ComponentDemographics:
	default:
		return false
	}
	switch c.Hosting {
	case HostingN3, HostingNonN3:
	default:
		return false
	}
	return c.DiskSpace >= 0 && c.RecordsNumber >= 0 && c.TransactionsLimit >= 0
}

// Owner is the user an Operino belongs to.
type Owner struct {
	Login     string `json:"login" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// DisplayName returns the owner's full name, falling back to the login.
func (o Owner) DisplayName() string {
	name := strings.TrimSpace(o.FirstName + " " + o.LastName)
	if name == "" {
		return o.Login
	}
	return name
}

// Operino is a tenant workspace backed by a domain in the clinical data
// repository.
type Operino struct {
	ID         int64
	Name       string
	Owner      Owner
	Domain     string
	Active     bool
	Provision  bool
	Components []Component
	CreatedAt  time.Time
}

var domainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// NewOperino creates a new active Operino with validation.
func NewOperino(name, domain string, owner Owner, provision bool, components []Component) (*Operino, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}
	if !IsValidDomain(domain) {
		return nil, ErrInvalidDomain
	}
	if owner.Login == "" {
		return nil, ErrInvalidOwner
	}
	for _, c := range components {
		if !c.valid() {
			return nil, ErrInvalidComponent
		}
	}

	return &Operino{
		Name:       name,
		Owner:      owner,
		Domain:     domain,
		Active:     true,
		Provision:  provision,
		Components: components,
		CreatedAt:  time.Now(),
	}, nil
}

// IsValidDomain reports whether domain is usable as a CDR domain identifier.
func IsValidDomain(domain string) bool {
	return len(domain) <= 63 && domainPattern.MatchString(domain)
}

// AddDefaultComponents populates the CDR and demographics components when the
// Operino has none. It reports whether anything was added.
func (o *Operino) AddDefaultComponents() bool {
	if len(o.Components) > 0 {
		return false
	}

	for _, t := range []ComponentType{ComponentCDR, ComponentDemographics} {
		o.Components = append(o.Components, Component{
			Type:              t,
			Availability:      true,
			Hosting:           HostingNonN3,
			DiskSpace:         defaultQuota,
			RecordsNumber:     defaultQuota,
			TransactionsLimit: defaultQuota,
		})
	}
	return true
}

// DomainUsername is the CDR login created for the Operino's domain.
func (o *Operino) DomainUsername() string {
	return DomainUsername(o.Owner.Login, o.Domain)
}

// DomainUsername builds the CDR login for an owner inside a domain.
func DomainUsername(login, domain string) string {
	return login + "_" + domain
}
