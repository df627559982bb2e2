package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	bookingvalidator "clinic/internal/appointments/validator"
	"clinic/internal/discovery/repository"
	"clinic/internal/discovery/validator"
	"clinic/internal/identity"
	"clinic/internal/notifications"
	"clinic/internal/observability/metrics"
	"clinic/internal/slots"
	"clinic/pkg/config"
	apperrors "clinic/pkg/errors"
	"clinic/pkg/model"
	"clinic/pkg/sanitizer"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("clinic.internal.discovery")

const (
	MsgNotConnected     = "Cannot connect to booking system. Please refresh."
	MsgFillAllFields    = "Please fill out all fields."
	MsgSelectPreferred  = "Please select a preferred date."
	MsgSubmissionFailed = "There was an error submitting your booking. Please try again."
	MsgListFailed       = "Could not load discovery requests."
)

type DiscoveryService interface {
	Submit(ctx context.Context, input *model.DiscoveryInput) (*model.DiscoveryRequest, error)
	List(ctx context.Context, limit, offset int) ([]*model.DiscoveryRequest, int64, error)
}

type discoveryService struct {
	repo      repository.DiscoveryRepository
	validator *validator.DiscoveryValidator
	queue     notifications.Queue
	metrics   *metrics.BookingMetrics
	cfg       *config.Config
	now       func() time.Time
}

func NewDiscoveryService(
	repo repository.DiscoveryRepository,
	validator *validator.DiscoveryValidator,
	queue notifications.Queue,
	m *metrics.BookingMetrics,
	cfg *config.Config,
) DiscoveryService {
	return &discoveryService{
		repo:      repo,
		validator: validator,
		queue:     queue,
		metrics:   m,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *discoveryService) Submit(ctx context.Context, input *model.DiscoveryInput) (*model.DiscoveryRequest, error) {
	ctx, span := tracer.Start(ctx, "discovery.Submit")
	defer span.End()

	req, outcome, err := s.submit(ctx, input)
	s.metrics.ObserveDiscovery(outcome)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	span.SetAttributes(attribute.String("clinic.discovery_id", req.ID))
	return req, nil
}

func (s *discoveryService) submit(ctx context.Context, input *model.DiscoveryInput) (*model.DiscoveryRequest, string, error) {
	caller, ok := identity.FromContext(ctx)
	if !ok {
		s.cfg.Log.Warn("Discovery request attempted without a ready identity")
		return nil, metrics.OutcomeUnavailable, apperrors.New(apperrors.CodeUnavailable, MsgNotConnected, http.StatusServiceUnavailable)
	}

	input.Name = sanitizer.NormalizeName(input.Name)
	input.Email = sanitizer.NormalizeEmail(input.Email)
	input.Message = sanitizer.NormalizeMessage(input.Message)
	input.PreferredDate = sanitizer.NormalizeToken(input.PreferredDate)
	input.UPIReference = sanitizer.NormalizeToken(input.UPIReference)

	if err := s.validator.Validate(input); err != nil {
		s.cfg.Log.Info("Discovery validation failed", "error", err)
		return nil, metrics.OutcomeInvalid, validationError(err)
	}

	req := &model.DiscoveryRequest{
		ID:            uuid.NewString(),
		Name:          input.Name,
		Email:         input.Email,
		Message:       input.Message,
		PreferredDate: input.PreferredDate,
		UPIReference:  input.UPIReference,
		RequestedBy:   caller.Subject,
		RequestedAt:   s.now().UTC().Truncate(time.Millisecond),
		Status:        model.DiscoveryStatusPending,
	}

	if err := s.repo.Submit(ctx, req); err != nil {
		s.cfg.Log.Error("Failed to store discovery request", "error", err)
		return nil, metrics.OutcomeUnavailable, apperrors.Wrap(err, apperrors.CodeUnavailable, MsgSubmissionFailed, http.StatusServiceUnavailable)
	}

	s.cfg.Log.Info("Discovery call requested",
		"discovery_id", req.ID,
		"requested_by", req.RequestedBy,
	)

	s.notify(ctx, req)
	return req, metrics.OutcomeCreated, nil
}

func (s *discoveryService) notify(ctx context.Context, req *model.DiscoveryRequest) {
	displayDate, err := slots.DisplayDate(req.PreferredDate)
	if err != nil {
		displayDate = req.PreferredDate
	}

	n := notifications.Request{
		Type:  notifications.KindDiscovery,
		Name:  req.Name,
		Email: req.Email,
		Date:  displayDate,
		Time:  notifications.DiscoveryTimePlaceholder,
		UPIID: req.UPIReference,
	}
	if err := s.queue.Enqueue(context.WithoutCancel(ctx), n); err != nil {
		s.cfg.Log.Warn("Failed to enqueue discovery notification",
			"discovery_id", req.ID,
			"error", err,
		)
	}
}

func (s *discoveryService) List(ctx context.Context, limit, offset int) ([]*model.DiscoveryRequest, int64, error) {
	requests, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list discovery requests", "error", err)
		return nil, 0, apperrors.Wrap(err, apperrors.CodeUnavailable, MsgListFailed, http.StatusServiceUnavailable)
	}
	return requests, total, nil
}

func validationError(err error) error {
	var verrs bookingvalidator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Validation(MsgFillAllFields, map[string]any{"error": err.Error()})
	}
	message := MsgFillAllFields
	if verrs.Has("PreferredDate") && !verrs.Has("Name") && !verrs.Has("Email") && !verrs.Has("Message") {
		message = MsgSelectPreferred
	}
	return apperrors.Validation(message, verrs.Details()).WithCause(err)
}
