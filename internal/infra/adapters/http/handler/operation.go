package httphandler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ahrav/operino-hub/internal/application/sdk/mid"
	"github.com/ahrav/operino-hub/internal/domain/operation"
)

const defaultStalledThreshold = 30 * time.Minute

// OperationService is the operation read model the handlers depend on.
type OperationService interface {
	GetByID(ctx context.Context, id int64) (*operation.Operation, error)
	GetOperationsByOperino(ctx context.Context, operinoID int64) ([]*operation.Operation, error)
	ListStalledOperations(ctx context.Context, threshold time.Duration) ([]*operation.Operation, error)
}

// OperationResponse is the JSON form of an operation.
type OperationResponse struct {
	ID            int64             `json:"id"`
	OperationType string            `json:"operation_type"`
	Status        string            `json:"status"`
	OperinoID     *int64            `json:"operino_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
	UpdatedAt     *time.Time        `json:"updated_at,omitempty"`
	ErrorMessage  *string           `json:"error_message,omitempty"`
	Parameters    map[string]any    `json:"parameters,omitempty"`
	Result        map[string]any    `json:"result,omitempty"`
	Links         map[string]string `json:"_links"`
}

func newOperationResponse(op *operation.Operation) OperationResponse {
	// Construct HATEOAS links for API discoverability.
	links := map[string]string{
		"self": fmt.Sprintf("/api/v1/operations/%d", op.ID),
	}
	if op.OperinoID != nil {
		links["operino"] = fmt.Sprintf("/api/v1/operinos/%d", *op.OperinoID)
	}

	return OperationResponse{
		ID:            op.ID,
		OperationType: op.Type.String(),
		Status:        string(op.Status),
		OperinoID:     op.OperinoID,
		CreatedAt:     op.CreatedAt,
		StartedAt:     op.StartedAt,
		CompletedAt:   op.CompletedAt,
		UpdatedAt:     op.UpdatedAt,
		ErrorMessage:  op.ErrorMessage,
		Parameters:    op.Parameters,
		Result:        op.Result,
		Links:         links,
	}
}

func newOperationList(ops []*operation.Operation) []OperationResponse {
	out := make([]OperationResponse, 0, len(ops))
	for _, op := range ops {
		out = append(out, newOperationResponse(op))
	}
	return out
}

// OperationHandler implements the operation-related API endpoints.
type OperationHandler struct{ operationService OperationService }

// NewOperationHandler creates a new operation handler with the given operation service.
func NewOperationHandler(operationService OperationService) *OperationHandler {
	return &OperationHandler{operationService: operationService}
}

// GetOperation handles GET /api/v1/operations/{id}.
func (h *OperationHandler) GetOperation(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	op, err := h.operationService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, operation.ErrOperationNotFound) {
			return mid.NewError(http.StatusNotFound, "operation not found", err)
		}
		return err
	}

	mid.Respond(w, http.StatusOK, newOperationResponse(op))
	return nil
}

// ListOperinoOperations handles GET /api/v1/operinos/{id}/operations.
func (h *OperationHandler) ListOperinoOperations(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	ops, err := h.operationService.GetOperationsByOperino(r.Context(), id)
	if err != nil {
		return err
	}

	mid.Respond(w, http.StatusOK, newOperationList(ops))
	return nil
}

// ListStalledOperations handles GET /api/v1/operations/stalled. The optional
// threshold query parameter is a Go duration, 30m by default.
func (h *OperationHandler) ListStalledOperations(w http.ResponseWriter, r *http.Request) error {
	threshold := defaultStalledThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return mid.NewError(http.StatusBadRequest, "threshold must be a positive duration", err)
		}
		threshold = d
	}

	ops, err := h.operationService.ListStalledOperations(r.Context(), threshold)
	if err != nil {
		return err
	}

	mid.Respond(w, http.StatusOK, newOperationList(ops))
	return nil
}
