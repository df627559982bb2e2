package repository

import (
	"context"
	"slices"
	"sync"

	"clinic/pkg/model"
)

type memoryDiscoveryRepository struct {
	mu       sync.RWMutex
	requests []model.DiscoveryRequest
}

func NewMemoryDiscoveryRepository() DiscoveryRepository {
	return &memoryDiscoveryRepository{}
}

func (r *memoryDiscoveryRepository) Submit(ctx context.Context, req *model.DiscoveryRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, *req)
	return nil
}

func (r *memoryDiscoveryRepository) List(ctx context.Context, limit, offset int) ([]*model.DiscoveryRequest, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	limit, offset = normalizePage(limit, offset)

	r.mu.RLock()
	defer r.mu.RUnlock()

	ordered := make([]model.DiscoveryRequest, len(r.requests))
	copy(ordered, r.requests)
	// Newest first; later submissions win ties.
	slices.Reverse(ordered)
	slices.SortStableFunc(ordered, func(a, b model.DiscoveryRequest) int {
		return b.RequestedAt.Compare(a.RequestedAt)
	})

	out := []*model.DiscoveryRequest{}
	for i := offset; i < len(ordered) && len(out) < limit; i++ {
		req := ordered[i]
		out = append(out, &req)
	}
	return out, int64(len(ordered)), nil
}
