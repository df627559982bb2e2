// Package feed keeps a live, in-memory view of the occupied slots in the
// booking window so pages can render availability without querying the
// store on every load.
package feed

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"clinic/internal/appointments/repository"
	"clinic/internal/observability/metrics"
	"clinic/internal/slots"
	"clinic/pkg/logger"
)

const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 30 * time.Second
)

var ErrAlreadyStarted = errors.New("occupied feed already started")

// Source is the subset of the reservation store the feed reads from.
type Source interface {
	ListOccupied(ctx context.Context, from, to time.Time) ([]string, error)
	Watch(ctx context.Context) (repository.ReservationStream, error)
}

type Calendar interface {
	Window() (time.Time, time.Time)
	Location() *time.Location
}

// OccupiedFeed mirrors the set of occupied slot ids inside the current
// window. It loads the set once, then follows newly created reservations.
// Any stream failure drops the snapshot, backs off, and reloads. A periodic
// resync prunes slots that left the window as days roll over.
type OccupiedFeed struct {
	src      Source
	calendar Calendar
	resync   time.Duration
	metrics  *metrics.BookingMetrics
	log      *logger.Logger

	mu       sync.RWMutex
	occupied map[string]time.Time
	ready    bool
	subs     map[*Subscription]struct{}

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewOccupiedFeed(src Source, calendar Calendar, resync time.Duration, m *metrics.BookingMetrics, log *logger.Logger) *OccupiedFeed {
	return &OccupiedFeed{
		src:      src,
		calendar: calendar,
		resync:   resync,
		metrics:  m,
		log:      log,
		occupied: make(map[string]time.Time),
		subs:     make(map[*Subscription]struct{}),
	}
}

// Start launches the background loop. It returns immediately; Ready reports
// when the first snapshot has loaded.
func (f *OccupiedFeed) Start(ctx context.Context) error {
	f.lifecycle.Lock()
	defer f.lifecycle.Unlock()
	if f.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.done = make(chan struct{})
	go f.run(ctx)
	f.log.Info("occupied feed started", "resync_interval", f.resync)
	return nil
}

// Stop ends the loop and closes every subscription.
func (f *OccupiedFeed) Stop() {
	f.lifecycle.Lock()
	cancel, done := f.cancel, f.done
	f.lifecycle.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	<-done

	f.lifecycle.Lock()
	f.cancel, f.done = nil, nil
	f.lifecycle.Unlock()

	f.mu.Lock()
	f.ready = false
	for sub := range f.subs {
		sub.closeLocked()
	}
	f.subs = make(map[*Subscription]struct{})
	f.mu.Unlock()
	f.log.Info("occupied feed stopped")
}

func (f *OccupiedFeed) Ready() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ready
}

// Snapshot returns the occupied slot ids in slot order. ok is false while
// the feed has no trustworthy view.
func (f *OccupiedFeed) Snapshot() (ids []string, ok bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.ready {
		return nil, false
	}
	return f.snapshotLocked(), true
}

func (f *OccupiedFeed) snapshotLocked() []string {
	ids := make([]string, 0, len(f.occupied))
	for id := range f.occupied {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (f *OccupiedFeed) run(ctx context.Context) {
	defer close(f.done)

	backoff := minBackoff
	for {
		loaded, err := f.follow(ctx)
		if ctx.Err() != nil {
			return
		}
		if loaded {
			backoff = minBackoff
		}

		f.setUnready()
		f.log.Warn("occupied feed interrupted, reloading", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// follow opens the stream before loading so no insert between the two is
// missed, then applies events until something fails. loaded reports whether
// the initial load succeeded.
func (f *OccupiedFeed) follow(ctx context.Context) (loaded bool, err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := f.src.Watch(ctx)
	if err != nil {
		return false, err
	}

	if err := f.reload(ctx); err != nil {
		f.closeStream(stream)
		return false, err
	}

	events := make(chan string)
	errc := make(chan error, 1)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			res, err := stream.Next(ctx)
			if err != nil {
				errc <- err
				return
			}
			select {
			case events <- res.SlotID:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()
	defer func() {
		cancel()
		<-readerDone
		f.closeStream(stream)
	}()

	var tick <-chan time.Time
	if f.resync > 0 {
		ticker := time.NewTicker(f.resync)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case err := <-errc:
			return true, err
		case id := <-events:
			f.add(id)
		case <-tick:
			if err := f.reload(ctx); err != nil {
				return true, err
			}
		}
	}
}

func (f *OccupiedFeed) closeStream(stream repository.ReservationStream) {
	if err := stream.Close(context.Background()); err != nil {
		f.log.Debug("failed to close reservation stream", "error", err)
	}
}

func (f *OccupiedFeed) reload(ctx context.Context) error {
	from, to := f.calendar.Window()
	ids, err := f.src.ListOccupied(ctx, from, to)
	if err != nil {
		return err
	}

	occupied := make(map[string]time.Time, len(ids))
	for _, id := range ids {
		if start, ok := f.moment(id); ok {
			occupied[id] = start
		}
	}

	f.mu.Lock()
	f.occupied = occupied
	f.ready = true
	f.publishLocked()
	f.mu.Unlock()
	return nil
}

func (f *OccupiedFeed) add(id string) {
	start, ok := f.moment(id)
	if !ok {
		return
	}
	from, to := f.calendar.Window()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruneLocked(from, to)
	if start.Before(from) || !start.Before(to) {
		return
	}
	if _, exists := f.occupied[id]; exists {
		return
	}
	f.occupied[id] = start
	f.publishLocked()
}

func (f *OccupiedFeed) pruneLocked(from, to time.Time) {
	for id, start := range f.occupied {
		if start.Before(from) || !start.Before(to) {
			delete(f.occupied, id)
		}
	}
}

func (f *OccupiedFeed) moment(id string) (time.Time, bool) {
	slot, err := slots.ParseSlotID(id)
	if err != nil {
		f.log.Warn("ignoring reservation with malformed slot id", "slot_id", id)
		return time.Time{}, false
	}
	start, err := slot.Start(f.calendar.Location())
	if err != nil {
		return time.Time{}, false
	}
	return start, true
}

func (f *OccupiedFeed) setUnready() {
	f.mu.Lock()
	f.ready = false
	f.mu.Unlock()
}

func (f *OccupiedFeed) publishLocked() {
	snapshot := f.snapshotLocked()
	f.metrics.SetOccupied(len(snapshot))
	for sub := range f.subs {
		sub.offer(snapshot)
	}
}

// Subscribe registers a view. It receives the current snapshot right away
// when one is available and then one snapshot per change. Slow readers only
// ever see the latest snapshot.
func (f *OccupiedFeed) Subscribe() *Subscription {
	sub := &Subscription{
		feed: f,
		ch:   make(chan []string, 1),
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[sub] = struct{}{}
	if f.ready {
		sub.offer(f.snapshotLocked())
	}
	return sub
}

type Subscription struct {
	feed   *OccupiedFeed
	ch     chan []string
	closed bool
}

// C is closed when the subscription or the feed is closed.
func (s *Subscription) C() <-chan []string {
	return s.ch
}

func (s *Subscription) Close() {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	delete(s.feed.subs, s)
	s.closeLocked()
}

func (s *Subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// offer replaces any unread snapshot with the newer one. Called with the
// feed lock held, so it is the only sender.
func (s *Subscription) offer(snapshot []string) {
	if s.closed {
		return
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- snapshot:
	default:
	}
}
