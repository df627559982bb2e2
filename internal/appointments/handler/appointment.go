package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"clinic/internal/appointments/feed"
	"clinic/internal/appointments/service"
	apperrors "clinic/pkg/errors"
	httputil "clinic/pkg/http"
	"clinic/pkg/logger"
	"clinic/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const (
	AppointmentsPath   = "/api/v1/appointments"
	SlotsPath          = AppointmentsPath + "/slots"
	OccupiedPath       = AppointmentsPath + "/occupied"
	OccupiedStreamPath = OccupiedPath + "/stream"

	heartbeatInterval = 25 * time.Second
)

// Subscriber hands out live occupied-slot subscriptions.
type Subscriber interface {
	Subscribe() *feed.Subscription
}

type AppointmentHandler struct {
	service service.AppointmentService
	feed    Subscriber
	log     *logger.Logger
}

func NewAppointmentHandler(service service.AppointmentService, feed Subscriber, log *logger.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		service: service,
		feed:    feed,
		log:     log,
	}
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("Invalid request body")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	reservation, err := h.service.Book(r.Context(), &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, reservation); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *AppointmentHandler) Slots(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	days, err := h.service.Availability(r.Context())
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Slots", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, days); err != nil {
		h.log.Error("failed to write success response", "handler", "Slots", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AppointmentHandler) Occupied(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ids, err := h.service.OccupiedSlots(r.Context())
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Occupied", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, nonNil(ids)); err != nil {
		h.log.Error("failed to write success response", "handler", "Occupied", "operation", "WriteSuccess", "error", err)
	}
}

// Stream pushes a "snapshot" server-sent event, carrying the JSON array of
// occupied slot ids, every time the occupied set changes. The subscription
// ends with the request.
func (h *AppointmentHandler) Stream(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	rc := http.NewResponseController(w)
	// The server write timeout would otherwise cut long-lived streams.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.log.Warn("failed to clear write deadline", "handler", "Stream", "error", err)
	}

	sub := h.feed.Subscribe()
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.log.Error("streaming not supported", "handler", "Stream", "error", err)
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case snapshot, ok := <-sub.C():
			if !ok {
				return
			}
			if err := writeSnapshot(w, snapshot); err != nil {
				h.log.Debug("stream client went away", "error", err)
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeSnapshot(w http.ResponseWriter, snapshot []string) error {
	data, err := json.Marshal(nonNil(snapshot))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
	return err
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func (h *AppointmentHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST(AppointmentsPath, h.Create)
	router.GET(SlotsPath, h.Slots)
	router.GET(OccupiedPath, h.Occupied)
	router.GET(OccupiedStreamPath, h.Stream)
}
