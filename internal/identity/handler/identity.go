package handler

import (
	"net/http"

	"clinic/internal/identity"
	apperrors "clinic/pkg/errors"
	httputil "clinic/pkg/http"
	"clinic/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

const (
	IdentityPath = "/api/v1/identity"

	unavailableMessage = "Cannot connect to booking system. Please refresh."
)

type IdentityHandler struct {
	issuer identity.Issuer
	log    *logger.Logger
}

func NewIdentityHandler(issuer identity.Issuer, log *logger.Logger) *IdentityHandler {
	return &IdentityHandler{
		issuer: issuer,
		log:    log,
	}
}

// Provision returns the caller's identity, minting one when the request
// did not already carry a valid token.
func (h *IdentityHandler) Provision(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if id, ok := identity.FromContext(r.Context()); ok {
		w.Header().Set(identity.TokenHeader, id.Token)
		if err := httputil.WriteCreated(w, id); err != nil {
			h.log.Error("failed to write created response", "handler", "Provision", "operation", "WriteCreated", "error", err)
		}
		return
	}

	id, err := h.issuer.Issue()
	if err != nil {
		h.log.Error("failed to provision identity", "error", err)
		appErr := apperrors.Wrap(err, apperrors.CodeUnavailable, unavailableMessage, http.StatusServiceUnavailable)
		if writeErr := httputil.WriteError(w, appErr); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Provision", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	w.Header().Set(identity.TokenHeader, id.Token)
	if err := httputil.WriteCreated(w, id); err != nil {
		h.log.Error("failed to write created response", "handler", "Provision", "operation", "WriteCreated", "error", err)
	}
}

func (h *IdentityHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST(IdentityPath, h.Provision)
}
