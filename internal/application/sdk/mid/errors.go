package mid

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ahrav/operino-hub/pkg/common/logger"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Error is a handler failure with a client-visible status. Errors of any other
// type are reported as 500 without exposing their text.
type Error struct {
	Status  int
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error for status with message.
func NewError(status int, message string, err error) *Error {
	return &Error{Status: status, Message: message, Err: err}
}

// HandlerFunc is an HTTP handler that reports failures by returning them.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Errors adapts h to http.Handler, writing returned errors as JSON.
func Errors(log *logger.Logger, h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}

		var appErr *Error
		if !errors.As(err, &appErr) {
			log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
			Respond(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}

		if appErr.Status >= http.StatusInternalServerError {
			log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		} else {
			log.Debug(r.Context(), "request rejected", "status_code", appErr.Status, "error", err)
		}
		Respond(w, appErr.Status, ErrorResponse{Error: appErr.Message, Fields: appErr.Fields})
	})
}

// Respond writes v as JSON with status.
func Respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
