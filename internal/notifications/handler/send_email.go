package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"clinic/internal/notifications"
	httputil "clinic/pkg/http"
	"clinic/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

const (
	SendEmailPath = "/api/send-email"

	msgMethodNotAllowed = "Method Not Allowed"
	msgInvalidType      = "Invalid booking type"
	msgDelivered        = "Booking successful and emails sent."
	msgFailed           = "Booking successful, but email notification failed."
)

// SendEmailHandler serves the legacy synchronous notification endpoint.
// Its responses are part of a public contract and must not change shape.
type SendEmailHandler struct {
	notifier notifications.Notifier
	log      *logger.Logger
}

func NewSendEmailHandler(notifier notifications.Notifier, log *logger.Logger) *SendEmailHandler {
	return &SendEmailHandler{
		notifier: notifier,
		log:      log,
	}
}

func (h *SendEmailHandler) SendEmail(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if r.Method != http.MethodPost {
		h.write(w, http.StatusMethodNotAllowed, httputil.ErrorResponse{Error: msgMethodNotAllowed})
		return
	}

	var req notifications.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Warn("send-email: undecodable body", "error", err)
	}

	outcome, err := h.notifier.Notify(r.Context(), req)
	if errors.Is(err, notifications.ErrUnknownKind) {
		h.write(w, http.StatusBadRequest, httputil.ErrorResponse{Error: msgInvalidType})
		return
	}

	// The booking itself already succeeded, so a failed notification is
	// still a 200.
	message := msgFailed
	if outcome == notifications.Delivered {
		message = msgDelivered
	}
	h.write(w, http.StatusOK, httputil.MessageResponse{Message: message})
}

func (h *SendEmailHandler) write(w http.ResponseWriter, status int, body any) {
	if err := httputil.WriteCompactJSON(w, status, body); err != nil {
		h.log.Error("failed to write response", "handler", "SendEmail", "operation", "WriteCompactJSON", "error", err)
	}
}

func (h *SendEmailHandler) RegisterRoutes(router *httprouter.Router) {
	for _, method := range []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
	} {
		router.Handle(method, SendEmailPath, h.SendEmail)
	}
}
