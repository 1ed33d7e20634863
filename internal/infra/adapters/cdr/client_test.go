package cdr

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/operino-hub/internal/domain/cdr"
	"github.com/ahrav/operino-hub/internal/domain/patient"
	"github.com/ahrav/operino-hub/pkg/common/logger"
)

type recorded struct {
	method      string
	path        string
	query       string
	auth        string
	contentType string
	body        []byte
}

type callLog struct {
	mu    sync.Mutex
	calls []recorded
}

func (l *callLog) all() []recorded {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recorded(nil), l.calls...)
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *callLog) {
	t.Helper()

	log := new(callLog)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		log.mu.Lock()
		log.calls = append(log.calls, recorded{
			method:      r.Method,
			path:        r.URL.Path,
			query:       r.URL.RawQuery,
			auth:        r.Header.Get("Authorization"),
			contentType: r.Header.Get("Content-Type"),
			body:        body,
		})
		log.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	resources := fstest.MapFS{
		"templates/problems/problems-template.xml": {Data: []byte("<template/>")},
		"compositions/good.json":                   {Data: []byte(`{"ctx/language":"en"}`)},
		"compositions/bad.json":                    {Data: []byte(`{"ctx/language":`)},
	}

	c := NewClient(Config{
		BaseURL:  srv.URL + "/",
		Username: "svc",
		Password: "pw",
		Timeout:  5 * time.Second,
	}, resources, logger.Noop(), noop.NewTracerProvider().Tracer("test"))
	return c, log
}

func ok(status int, body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestCreateDomain(t *testing.T) {
	c, calls := newTestClient(t, ok(http.StatusCreated, ""))

	require.NoError(t, c.CreateDomain(context.Background(), "clinic42", "Clinic 42"))
	require.Len(t, calls.all(), 1)

	call := calls.all()[0]
	assert.Equal(t, http.MethodPost, call.method)
	assert.Equal(t, "/admin/rest/v1/domains", call.path)
	assert.Equal(t, cdr.BasicAuth("svc", "pw").Header(), call.auth)
	assert.Equal(t, "application/json", call.contentType)

	var body map[string]any
	require.NoError(t, json.Unmarshal(call.body, &body))
	assert.Equal(t, map[string]any{
		"blocked":     false,
		"description": "Clinic 42",
		"name":        "clinic42",
		"systemId":    "clinic42",
	}, body)
}

func TestCreateDomain_Conflict(t *testing.T) {
	c, _ := newTestClient(t, ok(http.StatusConflict, "domain exists"))

	err := c.CreateDomain(context.Background(), "clinic42", "Clinic 42")
	var ext *cdr.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, http.StatusConflict, ext.StatusCode)
	assert.Equal(t, "domain exists", ext.Body)
	assert.Equal(t, "create domain", ext.Op)
}

func TestCreateDomain_NetworkError(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second},
		fstest.MapFS{}, logger.Noop(), noop.NewTracerProvider().Tracer("test"))

	err := c.CreateDomain(context.Background(), "clinic42", "Clinic 42")
	var ext *cdr.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Zero(t, ext.StatusCode)
	assert.Error(t, ext.Err)
}

func TestCreateUser(t *testing.T) {
	c, calls := newTestClient(t, ok(http.StatusCreated, ""))

	require.NoError(t, c.CreateUser(context.Background(), "clinic42", "jdoe_clinic42", "secret"))
	require.Len(t, calls.all(), 1)
	assert.Equal(t, "/admin/rest/v1/users", calls.all()[0].path)

	var body map[string]any
	require.NoError(t, json.Unmarshal(calls.all()[0].body, &body))
	assert.Equal(t, "jdoe_clinic42", body["username"])
	assert.Equal(t, "secret", body["password"])
	assert.Equal(t, "clinic42", body["defaultDomain"])
	assert.Nil(t, body["externalRef"])
	assert.Equal(t, false, body["superUser"])
	assert.Equal(t, map[string]any{"clinic42": []any{"ROLE_ADMIN"}}, body["roles"])
}

func TestUploadTemplate(t *testing.T) {
	c, calls := newTestClient(t, ok(http.StatusCreated, ""))
	auth := cdr.BasicAuth("jdoe_clinic42", "secret")

	require.NoError(t, c.UploadTemplate(context.Background(), auth, "templates/problems/problems-template.xml"))
	call := calls.all()[0]
	assert.Equal(t, "/rest/v1/template", call.path)
	assert.Equal(t, "application/xml", call.contentType)
	assert.Equal(t, auth.Header(), call.auth)
	assert.Equal(t, "<template/>", string(call.body))
}

func TestUploadTemplate_Missing(t *testing.T) {
	c, calls := newTestClient(t, ok(http.StatusCreated, ""))

	err := c.UploadTemplate(context.Background(), c.ServiceAuth(), "templates/nope.xml")
	var notFound *cdr.TemplateNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "templates/nope.xml", notFound.Path)
	assert.Empty(t, calls.all())
}

func TestCreatePatient(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantID   string
		wantErr  bool
	}{
		{"href", `{"meta":{"href":"https://cdr/rest/v1/demographics/party/1234"},"action":"CREATE"}`, "1234", false},
		{"id field", `{"id":"5678"}`, "5678", false},
		{"no id", `{}`, "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, calls := newTestClient(t, ok(http.StatusCreated, tc.response))
			p := patient.Patient{NHSNumber: "9990000001", FirstName: "Oliver", LastName: "Smith", Gender: "male"}

			id, err := c.CreatePatient(context.Background(), c.ServiceAuth(), p)
			if tc.wantErr {
				assert.True(t, cdr.IsExternal(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantID, id)

			var body map[string]any
			require.NoError(t, json.Unmarshal(calls.all()[0].body, &body))
			assert.Equal(t, "/rest/v1/demographics/party", calls.all()[0].path)
			assert.Equal(t, "MALE", body["gender"])
		})
	}
}

func TestCreateEhr(t *testing.T) {
	c, calls := newTestClient(t, ok(http.StatusCreated, `{"ehrId":"ehr-1"}`))

	id, err := c.CreateEhr(context.Background(), patient.Patient{FirstName: "Oliver"}, c.ServiceAuth(),
		"uk.nhs.nhs_number", "9990000001", "operino-provisioner")
	require.NoError(t, err)
	assert.Equal(t, "ehr-1", id)

	call := calls.all()[0]
	assert.Equal(t, "/rest/v1/ehr", call.path)
	assert.Contains(t, call.query, "subjectId=9990000001")
	assert.Contains(t, call.query, "subjectNamespace=uk.nhs.nhs_number")
	assert.Contains(t, call.query, "committerName=operino-provisioner")
}

func TestCreateComposition(t *testing.T) {
	c, calls := newTestClient(t, ok(http.StatusCreated, `{"compositionUid":"c-1::cdr::1"}`))

	uid, err := c.CreateComposition(context.Background(), c.ServiceAuth(), "ehr-1",
		"IDCR Allergies List.v0", "agent", "compositions/good.json")
	require.NoError(t, err)
	assert.Equal(t, "c-1::cdr::1", uid)

	call := calls.all()[0]
	assert.Equal(t, "/rest/v1/composition", call.path)
	assert.Contains(t, call.query, "format=FLAT")
	assert.Contains(t, call.query, "ehrId=ehr-1")
	assert.JSONEq(t, `{"ctx/language":"en"}`, string(call.body))
}

func TestCreateComposition_BundleErrors(t *testing.T) {
	c, calls := newTestClient(t, ok(http.StatusCreated, `{"compositionUid":"x"}`))

	_, err := c.CreateComposition(context.Background(), c.ServiceAuth(), "ehr-1", "t", "a", "compositions/bad.json")
	var payloadErr *cdr.CompositionPayloadError
	require.ErrorAs(t, err, &payloadErr)
	assert.Equal(t, "compositions/bad.json", payloadErr.Path)

	_, err = c.CreateComposition(context.Background(), c.ServiceAuth(), "ehr-1", "t", "a", "compositions/missing.json")
	var notFound *cdr.TemplateNotFoundError
	require.ErrorAs(t, err, &notFound)

	assert.Empty(t, calls.all())
}

func TestTruncateDomain(t *testing.T) {
	c, calls := newTestClient(t, ok(http.StatusNoContent, ""))

	require.NoError(t, c.TruncateDomain(context.Background(), "clinic42"))
	assert.Equal(t, http.MethodDelete, calls.all()[0].method)
	assert.Equal(t, "/admin/rest/v1/domains/clinic42/data", calls.all()[0].path)
}

func TestListDomains(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []string
	}{
		{"objects", `[{"name":"a","systemId":"a"},{"name":"b"}]`, []string{"a", "b"}},
		{"strings", `["x","y"]`, []string{"x", "y"}},
		{"empty", `[]`, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, calls := newTestClient(t, ok(http.StatusOK, tc.response))

			got, err := c.ListDomains(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, "/admin/rest/v1/domains", calls.all()[0].path)
		})
	}
}

func TestListDomains_Unauthorized(t *testing.T) {
	c, _ := newTestClient(t, ok(http.StatusUnauthorized, "bad credentials"))

	_, err := c.ListDomains(context.Background())
	var ext *cdr.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, http.StatusUnauthorized, ext.StatusCode)
}
