package handler

import (
	"encoding/json"
	"net/http"

	"clinic/internal/discovery/service"
	apperrors "clinic/pkg/errors"
	httputil "clinic/pkg/http"
	"clinic/pkg/logger"
	"clinic/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const DiscoveryCallsPath = "/api/v1/discovery-calls"

type DiscoveryHandler struct {
	service service.DiscoveryService
	log     *logger.Logger
}

func NewDiscoveryHandler(service service.DiscoveryService, log *logger.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		service: service,
		log:     log,
	}
}

func (h *DiscoveryHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input model.DiscoveryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("Invalid request body")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	req, err := h.service.Submit(r.Context(), &input)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, req); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

// Listing is operator-only and lives in clinicctl, not on the public API.
func (h *DiscoveryHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST(DiscoveryCallsPath, h.Create)
}
