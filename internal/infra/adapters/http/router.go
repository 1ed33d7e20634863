// Package http wires the operino-hub REST handlers onto a ServeMux.
package http

import (
	"net/http"

	"github.com/ahrav/operino-hub/internal/application/sdk/mid"
	httphandler "github.com/ahrav/operino-hub/internal/infra/adapters/http/handler"
	"github.com/ahrav/operino-hub/pkg/common/logger"
)

// NewRouter binds the Operino and operation endpoints.
func NewRouter(
	operinoHandler *httphandler.OperinoHandler,
	operationHandler *httphandler.OperationHandler,
	log *logger.Logger,
) http.Handler {
	log = log.Named("http")
	mux := http.NewServeMux()

	mux.Handle("POST /api/v1/operinos", mid.Errors(log, operinoHandler.CreateOperino))
	mux.Handle("GET /api/v1/operinos/{id}", mid.Errors(log, operinoHandler.GetOperino))
	mux.Handle("DELETE /api/v1/operinos/{id}", mid.Errors(log, operinoHandler.DeleteOperino))
	mux.Handle("GET /api/v1/operinos/{id}/operations", mid.Errors(log, operationHandler.ListOperinoOperations))
	mux.Handle("GET /api/v1/operations/stalled", mid.Errors(log, operationHandler.ListStalledOperations))
	mux.Handle("GET /api/v1/operations/{id}", mid.Errors(log, operationHandler.GetOperation))

	return mux
}
