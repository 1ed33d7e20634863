package httphandler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	appOperino "github.com/ahrav/operino-hub/internal/application/operino"
	"github.com/ahrav/operino-hub/internal/application/sdk/mid"
	"github.com/ahrav/operino-hub/internal/domain/cdr"
	"github.com/ahrav/operino-hub/internal/domain/operino"
)

// OperinoService is the Operino application service the handlers depend on.
type OperinoService interface {
	Create(ctx context.Context, params appOperino.CreateParams) (*appOperino.CreateResult, error)
	Get(ctx context.Context, id int64) (*operino.Operino, error)
	Delete(ctx context.Context, id int64) (*appOperino.DeleteResult, error)
}

// OperinoHandler implements the Operino API endpoints by translating HTTP
// requests to application service calls.
type OperinoHandler struct{ operinoService OperinoService }

// NewOperinoHandler creates a new Operino handler.
func NewOperinoHandler(operinoService OperinoService) *OperinoHandler {
	return &OperinoHandler{operinoService: operinoService}
}

// CreateOperino handles POST /api/v1/operinos. The Operino is persisted
// synchronously and provisioned in the background, so the response is 202.
func (h *OperinoHandler) CreateOperino(w http.ResponseWriter, r *http.Request) error {
	var req appOperino.CreateOperinoRequest
	if err := mid.Decode(r, &req); err != nil {
		return err
	}

	result, err := h.operinoService.Create(r.Context(), req.Params())
	if err != nil {
		return operinoError(err)
	}

	id := result.Operino.ID
	mid.Respond(w, http.StatusAccepted, appOperino.OperinoCreatedResponse{
		OperinoID: id,
		Domain:    result.Operino.Domain,
		TaskID:    result.TaskID,
		Status:    "provisioning",
		Links: map[string]string{
			"self":       fmt.Sprintf("/api/v1/operinos/%d", id),
			"operations": fmt.Sprintf("/api/v1/operinos/%d/operations", id),
		},
	})
	return nil
}

// GetOperino handles GET /api/v1/operinos/{id}.
func (h *OperinoHandler) GetOperino(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	o, err := h.operinoService.Get(r.Context(), id)
	if err != nil {
		return operinoError(err)
	}

	mid.Respond(w, http.StatusOK, appOperino.NewOperinoResponse(o, map[string]string{
		"self":       fmt.Sprintf("/api/v1/operinos/%d", id),
		"operations": fmt.Sprintf("/api/v1/operinos/%d/operations", id),
	}))
	return nil
}

// DeleteOperino handles DELETE /api/v1/operinos/{id}.
func (h *OperinoHandler) DeleteOperino(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	result, err := h.operinoService.Delete(r.Context(), id)
	if err != nil {
		return operinoError(err)
	}

	mid.Respond(w, http.StatusOK, appOperino.AsyncOperationResponse{
		OperationID: result.OperationID,
		Status:      "completed",
		OperinoID:   &id,
		Links: map[string]string{
			"operation": fmt.Sprintf("/api/v1/operations/%d", result.OperationID),
		},
	})
	return nil
}

func operinoError(err error) error {
	switch {
	case errors.Is(err, operino.ErrOperinoNotFound):
		return mid.NewError(http.StatusNotFound, "operino not found", err)
	case errors.Is(err, operino.ErrDomainTaken):
		return mid.NewError(http.StatusConflict, "domain already taken", err)
	case errors.Is(err, operino.ErrInvalidDomain),
		errors.Is(err, operino.ErrInvalidName),
		errors.Is(err, operino.ErrInvalidOwner),
		errors.Is(err, operino.ErrInvalidComponent):
		return mid.NewError(http.StatusBadRequest, err.Error(), err)
	case cdr.IsExternal(err):
		return mid.NewError(http.StatusBadGateway, "clinical data repository request failed", err)
	default:
		return err
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, mid.NewError(http.StatusBadRequest, "id must be a positive integer", err)
	}
	return id, nil
}
