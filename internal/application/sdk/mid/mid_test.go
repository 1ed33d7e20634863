package mid

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/operino-hub/pkg/common/logger"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"app error", NewError(http.StatusNotFound, "operino not found", nil), http.StatusNotFound, "operino not found"},
		{"wrapped app error", errors.Join(NewError(http.StatusConflict, "domain taken", nil)), http.StatusConflict, "domain taken"},
		{"unknown error hides details", errors.New("pq: connection refused"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := Errors(logger.Noop(), func(http.ResponseWriter, *http.Request) error { return tc.err })
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tc.wantMsg, decodeError(t, rec).Error)
		})
	}
}

func TestErrors_Success(t *testing.T) {
	h := Errors(logger.Noop(), func(w http.ResponseWriter, _ *http.Request) error {
		Respond(w, http.StatusAccepted, map[string]string{"ok": "yes"})
		return nil
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"ok":"yes"}`, rec.Body.String())
}

func TestPanics(t *testing.T) {
	h := Panics(logger.Noop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()

	assert.NotPanics(t, func() { h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil)) })
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWrap_Order(t *testing.T) {
	var order []string
	mw := func(name string) HTTPMiddleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "handler") }),
		mw("first"), mw("second"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

type owner struct {
	Login string `json:"login" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

type createRequest struct {
	Domain string `json:"domain" validate:"required,max=5"`
	Owner  owner  `json:"owner" validate:"required"`
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantFields map[string]string
		wantErr    bool
	}{
		{name: "valid", body: `{"domain":"acme","owner":{"login":"j","email":"j@x.io"}}`},
		{name: "malformed", body: `{"domain":`, wantErr: true},
		{name: "unknown field", body: `{"domain":"acme","extra":1}`, wantErr: true},
		{
			name:    "field errors",
			body:    `{"domain":"toolong","owner":{"login":"j","email":"nope"}}`,
			wantErr: true,
			wantFields: map[string]string{
				"domain":      "domain must be a maximum of 5 characters in length",
				"owner.email": "email must be a valid email address",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var v createRequest

			err := Decode(req, &v)
			if !tc.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "acme", v.Domain)
				return
			}

			var appErr *Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, http.StatusBadRequest, appErr.Status)
			if tc.wantFields != nil {
				assert.Equal(t, tc.wantFields, appErr.Fields)
			}
		})
	}
}
