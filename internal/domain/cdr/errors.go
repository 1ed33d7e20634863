package cdr

import (
	"errors"
	"fmt"
)

// ExternalServiceError reports a failed call to the clinical data repository,
// either a non-2xx response or a transport failure.
type ExternalServiceError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *ExternalServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("cdr %s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("cdr %s failed: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// TemplateNotFoundError reports a bundled template or composition resource
// that does not exist.
type TemplateNotFoundError struct {
	Path string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("bundled resource not found: %s", e.Path)
}

// CompositionPayloadError reports a bundled composition that is not valid JSON.
type CompositionPayloadError struct {
	Path string
	Err  error
}

func (e *CompositionPayloadError) Error() string {
	return fmt.Sprintf("malformed composition %s: %v", e.Path, e.Err)
}

func (e *CompositionPayloadError) Unwrap() error { return e.Err }

// IsExternal reports whether err originates from the remote repository.
func IsExternal(err error) bool {
	var ext *ExternalServiceError
	return errors.As(err, &ext)
}
