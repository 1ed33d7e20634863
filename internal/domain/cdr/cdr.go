// Package cdr defines the contract with the external clinical data
// repository that backs every Operino.
package cdr

import (
	"context"
	"encoding/base64"

	"github.com/ahrav/operino-hub/internal/domain/patient"
)

// Auth carries a precomputed Basic authorization header value.
type Auth struct{ header string }

// BasicAuth computes the Basic header for a username and password once.
func BasicAuth(username, password string) Auth {
	return Auth{header: "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))}
}

// Header returns the value for the Authorization header.
func (a Auth) Header() string { return a.header }

// IsZero reports whether no credentials were set.
func (a Auth) IsZero() bool { return a.header == "" }

// Client performs authenticated operations against the clinical data
// repository. Implementations must be safe for concurrent use.
type Client interface {
	// CreateDomain creates a tenant domain. Calling it for an existing domain
	// fails with an *ExternalServiceError defined by the remote system.
	CreateDomain(ctx context.Context, domain, description string) error

	// CreateUser creates a user holding the admin role on domain.
	CreateUser(ctx context.Context, domain, username, password string) error

	// UploadTemplate uploads a bundled operational template.
	UploadTemplate(ctx context.Context, auth Auth, templatePath string) error

	// CreatePatient registers a demographic party and returns its id.
	CreatePatient(ctx context.Context, auth Auth, p patient.Patient) (string, error)

	// CreateEhr creates the EHR for a subject and returns its id.
	CreateEhr(ctx context.Context, p patient.Patient, auth Auth, namespace, subjectID, agentName string) (string, error)

	// CreateComposition commits a bundled FLAT composition to an EHR and
	// returns the composition uid.
	CreateComposition(ctx context.Context, auth Auth, ehrID, templateID, agentName, compositionPath string) (string, error)

	// TruncateDomain deletes all data stored in a domain.
	TruncateDomain(ctx context.Context, domain string) error

	// ListDomains returns the domains visible to the service account.
	ListDomains(ctx context.Context) ([]string, error)

	// ServiceAuth returns the credentials of the configured service account.
	ServiceAuth() Auth
}
