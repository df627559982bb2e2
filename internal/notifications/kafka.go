package notifications

import (
	"context"
	"sync"
	"time"

	"clinic/internal/observability/metrics"
	"clinic/pkg/kafka"
	"clinic/pkg/logger"
	"clinic/pkg/middleware"

	"go.opentelemetry.io/otel/trace"
)

const (
	EventTypePrefix = "notification."
	schemaVersion   = "1"
)

type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaQueue publishes notification requests for cmd/notifier to deliver.
// Enqueue returns once the message is built; the publish runs in the
// background bounded by timeout, with at most maxInFlight outstanding.
type KafkaQueue struct {
	publisher Publisher
	source    string
	timeout   time.Duration
	inflight  chan struct{}
	metrics   *metrics.NotificationMetrics
	log       *logger.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewKafkaQueue(publisher Publisher, source string, timeout time.Duration, maxInFlight int, m *metrics.NotificationMetrics, log *logger.Logger) *KafkaQueue {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &KafkaQueue{
		publisher: publisher,
		source:    source,
		timeout:   timeout,
		inflight:  make(chan struct{}, maxInFlight),
		metrics:   m,
		log:       log,
	}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	msg, err := kafka.NewMessage().
		WithKey(req.Email).
		WithValue(req).
		WithEventType(EventTypePrefix + string(req.Type)).
		WithSchemaVersion(schemaVersion).
		WithSource(q.source).
		WithCorrelationID(correlationID(ctx)).
		Build()
	if err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		q.metrics.IncDropped()
		return ErrQueueClosed
	}

	select {
	case q.inflight <- struct{}{}:
	default:
		q.metrics.IncDropped()
		return ErrQueueFull
	}

	q.wg.Add(1)
	go q.publish(context.WithoutCancel(ctx), msg, req.Type)
	return nil
}

func (q *KafkaQueue) publish(ctx context.Context, msg kafka.Message, kind Kind) {
	defer q.wg.Done()
	defer func() { <-q.inflight }()

	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	if err := q.publisher.Publish(ctx, msg); err != nil {
		q.log.Warn("failed to publish notification",
			"type", kind,
			"event_id", msg.GetEventID(),
			"error", err,
		)
		return
	}
	q.log.Debug("notification enqueued", "type", kind, "event_id", msg.GetEventID())
}

// Stop rejects new work and waits for outstanding publishes or ctx.
func (q *KafkaQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		q.log.Warn("notification publisher stop timed out", "pending", len(q.inflight))
		return ctx.Err()
	}
}

// correlationID prefers the active trace id and falls back to the request id.
func correlationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return middleware.RequestIDFrom(ctx)
}

// ConsumerHandler delivers requests read from the notification topic.
// Malformed payloads are permanent failures and land on the DLQ. Delivery
// failures are logged and committed: a notification is attempted at most
// once.
func ConsumerHandler(notifier Notifier, log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var req Request
		if err := msg.DecodeValue(&req); err != nil {
			return kafka.NewPermanentError("invalid notification payload", err)
		}
		if err := req.Validate(); err != nil {
			return kafka.NewPermanentError("invalid notification request", err)
		}

		outcome, err := notifier.Notify(ctx, req)
		if outcome != Delivered {
			log.Warn("notification not delivered",
				"event_id", msg.GetEventID(),
				"type", req.Type,
				"error", err,
			)
		}
		return nil
	}
}

var _ Queue = (*KafkaQueue)(nil)
