// Package cdrfake provides an in-memory clinical data repository for tests.
package cdrfake

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/ahrav/operino-hub/internal/domain/cdr"
	"github.com/ahrav/operino-hub/internal/domain/patient"
)

// Method names recorded in Call.Method.
const (
	CreateDomain      = "CreateDomain"
	CreateUser        = "CreateUser"
	UploadTemplate    = "UploadTemplate"
	CreatePatient     = "CreatePatient"
	CreateEhr         = "CreateEhr"
	CreateComposition = "CreateComposition"
	TruncateDomain    = "TruncateDomain"
	ListDomains       = "ListDomains"
)

// Call is one recorded invocation. Arg holds the most identifying argument:
// the domain, template path, NHS number or composition path.
type Call struct {
	Method string
	Arg    string
	Auth   cdr.Auth
}

// Client records calls and keeps created domains in memory. Creating an
// existing domain fails with a 409 like the real repository.
type Client struct {
	mu      sync.Mutex
	calls   []Call
	domains map[string]bool
	nextID  int
	auth    cdr.Auth

	// FailOn, when set, is consulted before every call; a non-nil error is
	// returned instead of performing the call.
	FailOn func(c Call) error
}

var _ cdr.Client = (*Client)(nil)

// New creates an empty fake authenticated as the given service account.
func New() *Client {
	return &Client{domains: make(map[string]bool), auth: cdr.BasicAuth("service", "service")}
}

// Calls returns a snapshot of recorded calls.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Count returns how many calls of method were recorded.
func (c *Client) Count(method string) int {
	n := 0
	for _, call := range c.Calls() {
		if call.Method == method {
			n++
		}
	}
	return n
}

// Args returns, in order, the Arg of every call of method.
func (c *Client) Args(method string) []string {
	var args []string
	for _, call := range c.Calls() {
		if call.Method == method {
			args = append(args, call.Arg)
		}
	}
	return args
}

// HasDomain reports whether the domain exists.
func (c *Client) HasDomain(domain string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.domains[domain]
}

func (c *Client) record(method, arg string, auth cdr.Auth) error {
	call := Call{Method: method, Arg: arg, Auth: auth}
	c.mu.Lock()
	c.calls = append(c.calls, call)
	hook := c.FailOn
	c.mu.Unlock()
	if hook != nil {
		return hook(call)
	}
	return nil
}

func (c *Client) id(prefix string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return fmt.Sprintf("%s-%d", prefix, c.nextID)
}

func (c *Client) ServiceAuth() cdr.Auth { return c.auth }

func (c *Client) CreateDomain(_ context.Context, domain, _ string) error {
	if err := c.record(CreateDomain, domain, c.auth); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.domains[domain] {
		return &cdr.ExternalServiceError{Op: "create domain", StatusCode: http.StatusConflict, Body: "domain already exists"}
	}
	c.domains[domain] = true
	return nil
}

func (c *Client) CreateUser(_ context.Context, domain, _, _ string) error {
	return c.record(CreateUser, domain, c.auth)
}

func (c *Client) UploadTemplate(_ context.Context, auth cdr.Auth, templatePath string) error {
	return c.record(UploadTemplate, templatePath, auth)
}

func (c *Client) CreatePatient(_ context.Context, auth cdr.Auth, p patient.Patient) (string, error) {
	if err := c.record(CreatePatient, p.NHSNumber, auth); err != nil {
		return "", err
	}
	return c.id("party"), nil
}

func (c *Client) CreateEhr(_ context.Context, _ patient.Patient, auth cdr.Auth, _, subjectID, _ string) (string, error) {
	if err := c.record(CreateEhr, subjectID, auth); err != nil {
		return "", err
	}
	return c.id("ehr"), nil
}

func (c *Client) CreateComposition(_ context.Context, auth cdr.Auth, _, _, _, compositionPath string) (string, error) {
	if err := c.record(CreateComposition, compositionPath, auth); err != nil {
		return "", err
	}
	return c.id("composition"), nil
}

func (c *Client) TruncateDomain(_ context.Context, domain string) error {
	return c.record(TruncateDomain, domain, c.auth)
}

func (c *Client) ListDomains(context.Context) ([]string, error) {
	if err := c.record(ListDomains, "", c.auth); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	domains := make([]string, 0, len(c.domains))
	for d := range c.domains {
		domains = append(domains, d)
	}
	return domains, nil
}
