package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"clinic/pkg/logger"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(km kafka.Message, key string) string {
	for _, h := range km.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestMessageBuilder(t *testing.T) {
	msg, err := NewMessage().
		WithKey("2026-10-16T18:00").
		WithValue(map[string]string{"kind": "appointment"}).
		WithEventType("notification.requested").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if msg.GetEventID() == "" {
		t.Error("event id should be generated")
	}
	if msg.Headers[HeaderTimestamp] == "" {
		t.Error("timestamp header should be set")
	}
	var decoded map[string]string
	if err := msg.DecodeValue(&decoded); err != nil || decoded["kind"] != "appointment" {
		t.Errorf("DecodeValue = %v, %v", decoded, err)
	}
}

func TestMessageBuilder_EncodeError(t *testing.T) {
	_, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	if err == nil {
		t.Fatal("expected encode error")
	}
	if ClassifyError(err) != ErrorTypePermanent {
		t.Error("encode errors should be permanent")
	}
}

func TestRetryCount(t *testing.T) {
	msg := Message{}
	for i := 0; i < 12; i++ {
		msg.IncrementRetryCount()
	}
	if got := msg.GetRetryCount(); got != 12 {
		t.Errorf("GetRetryCount() = %d, want 12", got)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorType
	}{
		{nil, ErrorTypeUnknown},
		{errors.New("dial tcp: Connection Refused"), ErrorTypeTransient},
		{errors.New("context deadline exceeded"), ErrorTypeTransient},
		{errors.New("invalid payload"), ErrorTypePermanent},
		{NewTransientError("smtp", errors.New("421")), ErrorTypeTransient},
	}
	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.want {
			t.Errorf("ClassifyError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}

	if ShouldRetry(errors.New("timeout"), 3, 3) {
		t.Error("should not retry past max")
	}
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, nil, "clinic.notifications", "", logger.Discard())

	var seen []string
	p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
		seen = append(seen, msg.Topic)
		return next(ctx, msg)
	})

	msg, _ := NewMessage().WithKey("k").WithValue("v").Build()
	if err := p.Publish(context.Background(), msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.messages) != 1 || string(w.messages[0].Key) != "k" {
		t.Errorf("written = %+v", w.messages)
	}
	if len(seen) != 1 || seen[0] != "clinic.notifications" {
		t.Errorf("middleware saw %v", seen)
	}

	if err := p.Publish(context.Background(), Message{Value: []byte("x")}); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}

	_ = p.Close()
	if err := p.Publish(context.Background(), msg); !errors.Is(err, ErrProducerClosed) {
		t.Errorf("expected ErrProducerClosed, got %v", err)
	}
}

func TestProducer_FailureGoesToDLQ(t *testing.T) {
	writeErr := errors.New("broker down")
	w := &fakeWriter{err: writeErr}
	dlq := &fakeWriter{}
	p := newProducer(w, dlq, "clinic.notifications", "clinic.notifications.dlq", logger.Discard())

	msg, _ := NewMessage().WithKey("k").WithValue("v").Build()
	err := p.Publish(context.Background(), msg)
	if !errors.Is(err, writeErr) {
		t.Fatalf("expected original error, got %v", err)
	}
	if len(dlq.messages) != 1 {
		t.Fatalf("dlq got %d messages", len(dlq.messages))
	}
	if got := header(dlq.messages[0], HeaderDLQError); got != "broker down" {
		t.Errorf("dlq-error header = %q", got)
	}
}

func TestConsumer_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	handler := func(ctx context.Context, msg Message) error {
		calls++
		if calls < 3 {
			return NewTransientError("mail relay", errors.New("busy"))
		}
		return nil
	}
	dlq := &fakeWriter{}
	c := newConsumer(nil, dlq, "t", "g", handler, logger.Discard())
	c.maxRetries = 3

	if err := c.processMessage(context.Background(), Message{Key: "k", Headers: map[string]string{}}); err != nil {
		t.Fatalf("processMessage: %v", err)
	}
	if calls != 3 {
		t.Errorf("handler called %d times, want 3", calls)
	}
	if len(dlq.messages) != 0 {
		t.Error("nothing should reach the DLQ")
	}
}

func TestConsumer_PermanentFailureGoesToDLQ(t *testing.T) {
	calls := 0
	handler := func(ctx context.Context, msg Message) error {
		calls++
		return errors.New("unknown notification kind")
	}
	dlq := &fakeWriter{}
	c := newConsumer(nil, dlq, "t", "g", handler, logger.Discard())
	c.maxRetries = 3

	if err := c.processMessage(context.Background(), Message{Key: "k", Headers: map[string]string{}}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("permanent errors should not be retried, got %d calls", calls)
	}
	if len(dlq.messages) != 1 || header(dlq.messages[0], HeaderDLQGroup) != "g" {
		t.Errorf("dlq = %+v", dlq.messages)
	}
}
