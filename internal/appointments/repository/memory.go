package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	appointmentserrors "clinic/internal/appointments/errors"
	"clinic/pkg/model"
)

const memoryStreamBuffer = 256

// memoryReservationRepository keeps reservations in process. It honours the
// same create-if-absent contract as the Mongo store and backs
// STORE_BACKEND=memory as well as tests.
type memoryReservationRepository struct {
	mu       sync.Mutex
	byID     map[string]model.Reservation
	watchers map[*memoryStream]struct{}
}

func NewMemoryReservationRepository() ReservationRepository {
	return &memoryReservationRepository{
		byID:     make(map[string]model.Reservation),
		watchers: make(map[*memoryStream]struct{}),
	}
}

func (r *memoryReservationRepository) Reserve(ctx context.Context, reservation *model.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[reservation.SlotID]; exists {
		return fmt.Errorf("%w: %s", appointmentserrors.ErrSlotTaken, reservation.SlotID)
	}

	reservation.BookedAt = time.Now().UTC().Truncate(time.Millisecond)
	r.byID[reservation.SlotID] = *reservation

	for w := range r.watchers {
		w.publish(*reservation)
	}
	return nil
}

func (r *memoryReservationRepository) ListOccupied(ctx context.Context, from, to time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rows := make([]model.Reservation, 0, len(r.byID))
	for _, res := range r.byID {
		if !res.EffectiveMoment.Before(from) && res.EffectiveMoment.Before(to) {
			rows = append(rows, res)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].EffectiveMoment.Before(rows[j].EffectiveMoment)
	})

	ids := make([]string, 0, len(rows))
	for _, res := range rows {
		ids = append(ids, res.SlotID)
	}
	return ids, nil
}

func (r *memoryReservationRepository) Watch(ctx context.Context) (ReservationStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &memoryStream{
		repo:   r,
		events: make(chan model.Reservation, memoryStreamBuffer),
		done:   make(chan struct{}),
	}
	r.mu.Lock()
	r.watchers[s] = struct{}{}
	r.mu.Unlock()
	return s, nil
}

func (r *memoryReservationRepository) unwatch(s *memoryStream) {
	r.mu.Lock()
	delete(r.watchers, s)
	r.mu.Unlock()
}

type memoryStream struct {
	repo   *memoryReservationRepository
	events chan model.Reservation
	done   chan struct{}
	once   sync.Once
	lagged bool
}

// publish is called with the repository lock held. A watcher that cannot
// keep up is cut off with ErrStreamLagged rather than blocking writers.
func (s *memoryStream) publish(res model.Reservation) {
	if s.lagged {
		return
	}
	select {
	case s.events <- res:
	default:
		s.lagged = true
		close(s.events)
	}
}

func (s *memoryStream) Next(ctx context.Context) (*model.Reservation, error) {
	select {
	case res, ok := <-s.events:
		if !ok {
			return nil, appointmentserrors.ErrStreamLagged
		}
		return &res, nil
	case <-s.done:
		return nil, appointmentserrors.ErrStreamClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *memoryStream) Close(context.Context) error {
	s.once.Do(func() {
		s.repo.unwatch(s)
		close(s.done)
	})
	return nil
}
