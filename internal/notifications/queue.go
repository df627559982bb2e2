package notifications

import (
	"context"
	"sync"

	"clinic/internal/observability/metrics"
	"clinic/pkg/logger"
)

// Queue hands a notification off for delivery outside the caller's request.
type Queue interface {
	Enqueue(ctx context.Context, req Request) error
}

type job struct {
	ctx context.Context
	req Request
}

// Executor is a bounded in-process worker pool. Enqueue never blocks: a
// full buffer is reported as ErrQueueFull.
type Executor struct {
	notifier Notifier
	jobs     chan job
	workers  int
	metrics  *metrics.NotificationMetrics
	log      *logger.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewExecutor(notifier Notifier, workers, queueSize int, m *metrics.NotificationMetrics, log *logger.Logger) *Executor {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Executor{
		notifier: notifier,
		jobs:     make(chan job, queueSize),
		workers:  workers,
		metrics:  m,
		log:      log,
	}
}

func (e *Executor) Start() {
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.work(i)
	}
	e.log.Info("notification executor started", "workers", e.workers, "queue_size", cap(e.jobs))
}

func (e *Executor) work(id int) {
	defer e.wg.Done()
	for j := range e.jobs {
		e.metrics.SetQueueDepth(len(e.jobs))
		outcome, _ := e.notifier.Notify(j.ctx, j.req)
		e.log.Debug("notification processed", "worker", id, "type", j.req.Type, "outcome", outcome.String())
	}
}

func (e *Executor) Enqueue(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.stopped {
		e.metrics.IncDropped()
		return ErrQueueClosed
	}

	select {
	case e.jobs <- job{ctx: ctx, req: req}:
		e.metrics.SetQueueDepth(len(e.jobs))
		return nil
	default:
		e.metrics.IncDropped()
		return ErrQueueFull
	}
}

// Stop rejects new work and waits for queued notifications to drain or ctx
// to expire.
func (e *Executor) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.stopped {
		e.stopped = true
		close(e.jobs)
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.log.Info("notification executor stopped")
		return nil
	case <-ctx.Done():
		e.log.Warn("notification executor stop timed out", "pending", len(e.jobs))
		return ctx.Err()
	}
}

var _ Queue = (*Executor)(nil)
