package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	appointmentserrors "clinic/internal/appointments/errors"
	"clinic/internal/appointments/repository"
	"clinic/internal/appointments/validator"
	"clinic/internal/identity"
	"clinic/internal/notifications"
	"clinic/internal/observability/metrics"
	"clinic/internal/slots"
	"clinic/pkg/config"
	apperrors "clinic/pkg/errors"
	"clinic/pkg/model"
	"clinic/pkg/sanitizer"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("clinic.internal.appointments")

const (
	MsgNotConnected    = "Cannot connect to booking system. Please refresh."
	MsgSelectSlot      = "Please select a time slot."
	MsgFillAllFields   = "Please fill out all fields."
	MsgSlotTaken       = "This slot may have just been booked. Please try another slot."
	MsgSlotUnavailable = "The selected slot is not available for booking."
	MsgLoadSlotsFailed = "Could not load available slots. Please refresh."
	MsgBookingFailed   = "There was an error submitting your booking. Please try again."
)

type AppointmentService interface {
	Book(ctx context.Context, req *model.BookingRequest) (*model.Reservation, error)
	OccupiedSlots(ctx context.Context) ([]string, error)
	Availability(ctx context.Context) ([]model.SlotAvailability, error)
}

// Snapshotter serves occupied slots from memory when it has a fresh view.
type Snapshotter interface {
	Snapshot() ([]string, bool)
}

type appointmentService struct {
	repo      repository.ReservationRepository
	feed      Snapshotter
	calendar  *slots.Calendar
	validator *validator.BookingValidator
	queue     notifications.Queue
	metrics   *metrics.BookingMetrics
	cfg       *config.Config
}

func NewAppointmentService(
	repo repository.ReservationRepository,
	feed Snapshotter,
	calendar *slots.Calendar,
	validator *validator.BookingValidator,
	queue notifications.Queue,
	m *metrics.BookingMetrics,
	cfg *config.Config,
) AppointmentService {
	return &appointmentService{
		repo:      repo,
		feed:      feed,
		calendar:  calendar,
		validator: validator,
		queue:     queue,
		metrics:   m,
		cfg:       cfg,
	}
}

// Book reserves a slot for the caller. Uniqueness is enforced by the store;
// there is no retry on conflict. The confirmation email is queued after the
// reservation commits and its outcome never changes the result.
func (s *appointmentService) Book(ctx context.Context, req *model.BookingRequest) (*model.Reservation, error) {
	ctx, span := tracer.Start(ctx, "appointments.Book")
	defer span.End()

	reservation, outcome, err := s.book(ctx, req)
	s.metrics.ObserveBooking(outcome.label, outcome.reserveDuration)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome.label)
		return nil, err
	}

	span.SetAttributes(attribute.String("clinic.slot_id", reservation.SlotID))
	return reservation, nil
}

type bookOutcome struct {
	label           string
	reserveDuration time.Duration
}

func (s *appointmentService) book(ctx context.Context, req *model.BookingRequest) (*model.Reservation, bookOutcome, error) {
	caller, ok := identity.FromContext(ctx)
	if !ok {
		s.cfg.Log.Warn("Booking attempted without a ready identity")
		return nil, bookOutcome{label: metrics.OutcomeUnavailable}, apperrors.New(apperrors.CodeUnavailable, MsgNotConnected, http.StatusServiceUnavailable)
	}

	s.sanitize(req)
	if err := s.validator.Validate(req); err != nil {
		s.cfg.Log.Info("Booking validation failed", "error", err)
		return nil, bookOutcome{label: metrics.OutcomeInvalid}, validationError(err)
	}

	slot, err := s.calendar.Resolve(req.Date, req.Time)
	if err != nil {
		s.cfg.Log.Info("Booking rejected by calendar", "date", req.Date, "time", req.Time, "error", err)
		return nil, bookOutcome{label: metrics.OutcomeInvalid}, apperrors.Validation(MsgSlotUnavailable, map[string]any{"slot": err.Error()}).WithCause(err)
	}

	start, err := slot.Start(s.calendar.Location())
	if err != nil {
		return nil, bookOutcome{label: metrics.OutcomeInvalid}, apperrors.Validation(MsgSlotUnavailable, nil).WithCause(err)
	}

	reservation := &model.Reservation{
		SlotID:          slot.ID(),
		Date:            slot.Date,
		Time:            slot.Time,
		PatientName:     req.Name,
		PatientEmail:    req.Email,
		BookedBy:        caller.Subject,
		EffectiveMoment: start,
	}

	reserveStart := time.Now()
	err = s.repo.Reserve(ctx, reservation)
	elapsed := time.Since(reserveStart)
	if err != nil {
		if errors.Is(err, appointmentserrors.ErrSlotTaken) {
			s.cfg.Log.Info("Slot already taken", "slot_id", reservation.SlotID)
			return nil, bookOutcome{label: metrics.OutcomeConflict, reserveDuration: elapsed}, apperrors.Conflict(MsgSlotTaken).WithCause(err)
		}
		s.cfg.Log.Error("Failed to reserve slot", "slot_id", reservation.SlotID, "error", err)
		return nil, bookOutcome{label: metrics.OutcomeUnavailable, reserveDuration: elapsed}, apperrors.Wrap(err, apperrors.CodeUnavailable, MsgBookingFailed, http.StatusServiceUnavailable)
	}

	s.cfg.Log.Info("Appointment booked",
		"slot_id", reservation.SlotID,
		"booked_by", reservation.BookedBy,
	)

	s.notify(ctx, reservation)
	return reservation, bookOutcome{label: metrics.OutcomeCreated, reserveDuration: elapsed}, nil
}

// notify enqueues on a context that outlives the request. Failures are
// logged only.
func (s *appointmentService) notify(ctx context.Context, reservation *model.Reservation) {
	displayDate, err := slots.DisplayDate(reservation.Date)
	if err != nil {
		displayDate = reservation.Date
	}

	req := notifications.Request{
		Type:  notifications.KindAppointment,
		Name:  reservation.PatientName,
		Email: reservation.PatientEmail,
		Date:  displayDate,
		Time:  reservation.Time,
	}
	if err := s.queue.Enqueue(context.WithoutCancel(ctx), req); err != nil {
		s.cfg.Log.Warn("Failed to enqueue appointment notification",
			"slot_id", reservation.SlotID,
			"error", err,
		)
	}
}

func (s *appointmentService) OccupiedSlots(ctx context.Context) ([]string, error) {
	if s.feed != nil {
		if ids, ok := s.feed.Snapshot(); ok {
			return ids, nil
		}
	}

	from, to := s.calendar.Window()
	ids, err := s.repo.ListOccupied(ctx, from, to)
	if err != nil {
		s.cfg.Log.Error("Failed to list occupied slots", "error", err)
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, MsgLoadSlotsFailed, http.StatusServiceUnavailable)
	}
	return ids, nil
}

func (s *appointmentService) Availability(ctx context.Context) ([]model.SlotAvailability, error) {
	occupied, err := s.OccupiedSlots(ctx)
	if err != nil {
		return nil, err
	}

	booked := make(map[string]struct{}, len(occupied))
	for _, id := range occupied {
		booked[id] = struct{}{}
	}

	var days []model.SlotAvailability
	for slot := range s.calendar.Slots() {
		if len(days) == 0 || days[len(days)-1].Date != slot.Date {
			display, _ := slots.DisplayDate(slot.Date)
			days = append(days, model.SlotAvailability{Date: slot.Date, DisplayDate: display})
		}
		_, taken := booked[slot.ID()]
		day := &days[len(days)-1]
		day.Slots = append(day.Slots, model.SlotStatus{
			SlotID: slot.ID(),
			Time:   slot.Time,
			Booked: taken,
		})
	}
	return days, nil
}

func (s *appointmentService) sanitize(req *model.BookingRequest) {
	req.Name = sanitizer.NormalizeName(req.Name)
	req.Email = sanitizer.NormalizeEmail(req.Email)
	req.Date = sanitizer.NormalizeToken(req.Date)
	req.Time = sanitizer.NormalizeToken(req.Time)
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Validation(MsgFillAllFields, map[string]any{"error": err.Error()})
	}
	message := MsgFillAllFields
	if verrs.Has("Time") {
		message = MsgSelectSlot
	}
	return apperrors.Validation(message, verrs.Details()).WithCause(err)
}
