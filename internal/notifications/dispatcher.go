package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic/internal/observability/metrics"
	"clinic/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("clinic.internal.notifications")

const (
	recipientPatient = "patient"
	recipientClinic  = "clinic"
)

// Notifier delivers one booking notification.
type Notifier interface {
	Notify(ctx context.Context, req Request) (Outcome, error)
}

type Dispatcher struct {
	composer *Composer
	sender   EmailSender
	timeout  time.Duration
	metrics  *metrics.NotificationMetrics
	log      *logger.Logger
}

func NewDispatcher(
	composer *Composer,
	sender EmailSender,
	timeout time.Duration,
	m *metrics.NotificationMetrics,
	log *logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		composer: composer,
		sender:   sender,
		timeout:  timeout,
		metrics:  m,
		log:      log,
	}
}

// Notify sends the patient confirmation (CC clinic) and the clinic summary.
// The two sends are independent: one failing does not stop the other. The
// outcome is Delivered only when both succeed within the timeout; the
// returned error explains a Failed outcome.
func (d *Dispatcher) Notify(ctx context.Context, req Request) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "notifications.Notify")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.notification.kind", string(req.Type)))

	start := time.Now()
	outcome, err := d.notify(ctx, req)
	d.metrics.ObserveDispatch(string(req.Type), outcome.String(), time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "notification failed")
		d.log.Warn("notification failed",
			"type", req.Type,
			"date", req.Date,
			"duration", time.Since(start),
			"error", err,
		)
		return outcome, err
	}

	d.log.Info("notification delivered", "type", req.Type, "date", req.Date, "duration", time.Since(start))
	return outcome, nil
}

func (d *Dispatcher) notify(ctx context.Context, req Request) (Outcome, error) {
	if err := req.Validate(); err != nil {
		return Failed, err
	}

	patient, clinic, err := d.composer.Compose(req)
	if err != nil {
		return Failed, err
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	var patientErr, clinicErr error
	var g errgroup.Group
	g.Go(func() error {
		patientErr = d.send(ctx, recipientPatient, patient)
		return nil
	})
	g.Go(func() error {
		clinicErr = d.send(ctx, recipientClinic, clinic)
		return nil
	})
	_ = g.Wait()

	if err := errors.Join(patientErr, clinicErr); err != nil {
		return Failed, err
	}
	return Delivered, nil
}

func (d *Dispatcher) send(ctx context.Context, recipient string, msg Email) error {
	err := d.sender.Send(ctx, msg)
	if err == nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
	}
	d.metrics.ObserveSend(recipient, err)
	if err != nil {
		return fmt.Errorf("%s message: %w", recipient, err)
	}
	return nil
}

var _ Notifier = (*Dispatcher)(nil)
