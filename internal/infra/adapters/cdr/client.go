// Package cdr implements the clinical data repository client over its REST
// API.
package cdr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/operino-hub/internal/domain/cdr"
	"github.com/ahrav/operino-hub/internal/domain/patient"
	"github.com/ahrav/operino-hub/pkg/common/logger"
)

const (
	contentTypeJSON = "application/json"
	contentTypeXML  = "application/xml"

	// Error bodies beyond this size are truncated.
	maxErrorBody = 4 << 10
)

// Config holds the connection settings of the repository.
type Config struct {
	BaseURL   string
	DomainURL string
	Username  string
	Password  string
	Timeout   time.Duration
}

var _ cdr.Client = (*Client)(nil)

// Client talks to the clinical data repository. It is immutable after
// construction and safe for concurrent use.
type Client struct {
	baseURL   string
	domainURL string
	auth      cdr.Auth
	resources fs.FS
	http      *http.Client

	logger *logger.Logger
	tracer trace.Tracer
}

// NewClient creates a client whose admin calls authenticate with the
// configured service account. Bundled templates and compositions are read
// from resources.
func NewClient(cfg Config, resources fs.FS, log *logger.Logger, tracer trace.Tracer) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	domainURL := cfg.DomainURL
	if domainURL == "" {
		domainURL = base + "/admin/rest/v1/domains"
	}

	return &Client{
		baseURL:   base,
		domainURL: domainURL,
		auth:      cdr.BasicAuth(cfg.Username, cfg.Password),
		resources: resources,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: log.Named("cdr_client"),
		tracer: tracer,
	}
}

// ServiceAuth returns the credentials of the configured service account.
func (c *Client) ServiceAuth() cdr.Auth { return c.auth }

// CreateDomain creates a tenant domain named after the Operino domain.
func (c *Client) CreateDomain(ctx context.Context, domain, description string) error {
	ctx, span := c.tracer.Start(ctx, "cdr.CreateDomain", trace.WithAttributes(
		attribute.String("domain", domain),
	))
	defer span.End()

	body, err := json.Marshal(map[string]any{
		"blocked":     false,
		"description": description,
		"name":        domain,
		"systemId":    domain,
	})
	if err != nil {
		return fail(span, fmt.Errorf("failed to encode domain request (%s): %w", domain, err))
	}

	if _, err := c.do(ctx, "create domain", http.MethodPost, c.baseURL+"/admin/rest/v1/domains", c.auth, contentTypeJSON, body); err != nil {
		return fail(span, err)
	}
	c.logger.Debug(ctx, "domain created", "domain", domain)
	return nil
}

// CreateUser creates a domain administrator.
func (c *Client) CreateUser(ctx context.Context, domain, username, password string) error {
	ctx, span := c.tracer.Start(ctx, "cdr.CreateUser", trace.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("username", username),
	))
	defer span.End()

	body, err := json.Marshal(map[string]any{
		"username":      username,
		"password":      password,
		"name":          username,
		"externalRef":   nil,
		"blocked":       false,
		"defaultDomain": domain,
		"roles":         map[string][]string{domain: {"ROLE_ADMIN"}},
		"superUser":     false,
	})
	if err != nil {
		return fail(span, fmt.Errorf("failed to encode user request (%s): %w", username, err))
	}

	if _, err := c.do(ctx, "create user", http.MethodPost, c.baseURL+"/admin/rest/v1/users", c.auth, contentTypeJSON, body); err != nil {
		return fail(span, err)
	}
	c.logger.Debug(ctx, "user created", "domain", domain, "username", username)
	return nil
}

// UploadTemplate uploads a bundled XML template.
func (c *Client) UploadTemplate(ctx context.Context, auth cdr.Auth, templatePath string) error {
	ctx, span := c.tracer.Start(ctx, "cdr.UploadTemplate", trace.WithAttributes(
		attribute.String("template", templatePath),
	))
	defer span.End()

	tpl, err := c.readResource(templatePath)
	if err != nil {
		return fail(span, err)
	}

	if _, err := c.do(ctx, "upload template", http.MethodPost, c.baseURL+"/rest/v1/template", auth, contentTypeXML, tpl); err != nil {
		return fail(span, err)
	}
	c.logger.Debug(ctx, "template uploaded", "template", templatePath)
	return nil
}

type partyInfo struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CreatePatient registers a demographic party and returns its id.
func (c *Client) CreatePatient(ctx context.Context, auth cdr.Auth, p patient.Patient) (string, error) {
	ctx, span := c.tracer.Start(ctx, "cdr.CreatePatient", trace.WithAttributes(
		attribute.String("nhs_number", p.NHSNumber),
	))
	defer span.End()

	body, err := json.Marshal(map[string]any{
		"firstNames":  p.FirstName,
		"lastNames":   p.LastName,
		"gender":      strings.ToUpper(p.Gender),
		"dateOfBirth": p.DateOfBirth,
		"address":     map[string]string{"address": strings.Join(p.AddressLines(), ", ")},
		"partyAdditionalInfo": []partyInfo{
			{Key: "title", Value: p.Title},
			{Key: "uk.nhs.nhs_number", Value: p.NHSNumber},
			{Key: "telephone", Value: p.Telephone},
		},
	})
	if err != nil {
		return "", fail(span, fmt.Errorf("failed to encode party request (%s): %w", p.NHSNumber, err))
	}

	resp, err := c.do(ctx, "create patient", http.MethodPost, c.baseURL+"/rest/v1/demographics/party", auth, contentTypeJSON, body)
	if err != nil {
		return "", fail(span, err)
	}

	id := partyID(resp)
	if id == "" {
		return "", fail(span, &cdr.ExternalServiceError{Op: "create patient", Err: errors.New("response carries no party id")})
	}
	span.SetAttributes(attribute.String("party_id", id))
	return id, nil
}

// partyID extracts the id from either the created resource link or an id field.
func partyID(resp []byte) string {
	if href := gjson.GetBytes(resp, "meta.href").String(); href != "" {
		return path.Base(strings.TrimRight(href, "/"))
	}
	return gjson.GetBytes(resp, "id").String()
}

// CreateEhr creates the EHR for a subject.
func (c *Client) CreateEhr(
	ctx context.Context,
	p patient.Patient,
	auth cdr.Auth,
	namespace, subjectID, agentName string,
) (string, error) {
	ctx, span := c.tracer.Start(ctx, "cdr.CreateEhr", trace.WithAttributes(
		attribute.String("subject_id", subjectID),
		attribute.String("namespace", namespace),
	))
	defer span.End()

	q := url.Values{}
	q.Set("subjectId", subjectID)
	q.Set("subjectNamespace", namespace)
	q.Set("committerName", agentName)

	body, err := json.Marshal(map[string]any{
		"subjectName": p.FullName(),
		"queryable":   true,
		"modifiable":  true,
	})
	if err != nil {
		return "", fail(span, fmt.Errorf("failed to encode ehr request (%s): %w", subjectID, err))
	}

	resp, err := c.do(ctx, "create ehr", http.MethodPost, c.baseURL+"/rest/v1/ehr?"+q.Encode(), auth, contentTypeJSON, body)
	if err != nil {
		return "", fail(span, err)
	}

	id := gjson.GetBytes(resp, "ehrId").String()
	if id == "" {
		return "", fail(span, &cdr.ExternalServiceError{Op: "create ehr", Err: errors.New("response carries no ehrId")})
	}
	span.SetAttributes(attribute.String("ehr_id", id))
	return id, nil
}

// CreateComposition commits a bundled FLAT composition.
func (c *Client) CreateComposition(
	ctx context.Context,
	auth cdr.Auth,
	ehrID, templateID, agentName, compositionPath string,
) (string, error) {
	ctx, span := c.tracer.Start(ctx, "cdr.CreateComposition", trace.WithAttributes(
		attribute.String("ehr_id", ehrID),
		attribute.String("template_id", templateID),
		attribute.String("composition", compositionPath),
	))
	defer span.End()

	payload, err := c.readResource(compositionPath)
	if err != nil {
		return "", fail(span, err)
	}
	if !gjson.ValidBytes(payload) {
		return "", fail(span, &cdr.CompositionPayloadError{Path: compositionPath, Err: errors.New("invalid json")})
	}

	q := url.Values{}
	q.Set("ehrId", ehrID)
	q.Set("templateId", templateID)
	q.Set("committerName", agentName)
	q.Set("format", "FLAT")

	resp, err := c.do(ctx, "create composition", http.MethodPost, c.baseURL+"/rest/v1/composition?"+q.Encode(), auth, contentTypeJSON, payload)
	if err != nil {
		return "", fail(span, err)
	}

	uid := gjson.GetBytes(resp, "compositionUid").String()
	if uid == "" {
		return "", fail(span, &cdr.ExternalServiceError{Op: "create composition", Err: errors.New("response carries no compositionUid")})
	}
	return uid, nil
}

// TruncateDomain deletes all data of a domain.
func (c *Client) TruncateDomain(ctx context.Context, domain string) error {
	ctx, span := c.tracer.Start(ctx, "cdr.TruncateDomain", trace.WithAttributes(
		attribute.String("domain", domain),
	))
	defer span.End()

	u := c.baseURL + "/admin/rest/v1/domains/" + url.PathEscape(domain) + "/data"
	if _, err := c.do(ctx, "truncate domain", http.MethodDelete, u, c.auth, "", nil); err != nil {
		return fail(span, err)
	}
	c.logger.Info(ctx, "domain truncated", "domain", domain)
	return nil
}

// ListDomains returns the domain names visible to the service account. The
// listing may contain either plain names or domain objects.
func (c *Client) ListDomains(ctx context.Context) ([]string, error) {
	ctx, span := c.tracer.Start(ctx, "cdr.ListDomains")
	defer span.End()

	resp, err := c.do(ctx, "list domains", http.MethodGet, c.domainURL, c.auth, "", nil)
	if err != nil {
		return nil, fail(span, err)
	}
	if !gjson.ValidBytes(resp) {
		return nil, fail(span, &cdr.ExternalServiceError{Op: "list domains", Err: errors.New("invalid json response")})
	}

	var domains []string
	gjson.ParseBytes(resp).ForEach(func(_, v gjson.Result) bool {
		switch {
		case v.Type == gjson.String:
			domains = append(domains, v.String())
		case v.Get("systemId").Exists():
			domains = append(domains, v.Get("systemId").String())
		case v.Get("name").Exists():
			domains = append(domains, v.Get("name").String())
		}
		return true
	})
	span.SetAttributes(attribute.Int("domain_count", len(domains)))
	return domains, nil
}

func (c *Client) readResource(name string) ([]byte, error) {
	data, err := fs.ReadFile(c.resources, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &cdr.TemplateNotFoundError{Path: name}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read bundled resource (%s): %w", name, err)
	}
	return data, nil
}

// do executes a request and returns the response body of a 2xx reply.
func (c *Client) do(
	ctx context.Context,
	op, method, u string,
	auth cdr.Auth,
	contentType string,
	body []byte,
) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, &cdr.ExternalServiceError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", auth.Header())
	req.Header.Set("Accept", contentTypeJSON)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &cdr.ExternalServiceError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &cdr.ExternalServiceError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &cdr.ExternalServiceError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	return data, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
