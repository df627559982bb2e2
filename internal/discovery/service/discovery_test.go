package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"clinic/internal/discovery/repository"
	"clinic/internal/discovery/validator"
	"clinic/internal/identity"
	"clinic/internal/notifications"
	"clinic/pkg/config"
	apperrors "clinic/pkg/errors"
	"clinic/pkg/kafka"
	"clinic/pkg/logger"
	"clinic/pkg/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockQueue struct {
	mu       sync.Mutex
	err      error
	requests []notifications.Request
}

func (m *mockQueue) Enqueue(_ context.Context, req notifications.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return m.err
}

type failingRepo struct{ err error }

func (f failingRepo) Submit(context.Context, *model.DiscoveryRequest) error { return f.err }

func (f failingRepo) List(context.Context, int, int) ([]*model.DiscoveryRequest, int64, error) {
	return nil, 0, f.err
}

func newService(repo repository.DiscoveryRepository, queue notifications.Queue) *discoveryService {
	log := logger.Discard()
	svc := NewDiscoveryService(repo, validator.NewDiscoveryValidator(log), queue, nil, &config.Config{Log: log}).(*discoveryService)
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 4, 30, 0, 0, time.UTC) }
	return svc
}

func caller() context.Context {
	return identity.ContextWithIdentity(context.Background(), identity.Identity{Subject: "anon-9", Anonymous: true})
}

func input() *model.DiscoveryInput {
	return &model.DiscoveryInput{
		Name:          " Ravi  Kumar ",
		Email:         "Ravi@Example.com ",
		Message:       "Recurring migraines",
		PreferredDate: "2025-06-04",
		UPIReference:  " T2506041234 ",
	}
}

func TestSubmit_StoresPendingRequest(t *testing.T) {
	repo := repository.NewMemoryDiscoveryRepository()
	queue := &mockQueue{}

	req, err := newService(repo, queue).Submit(caller(), input())
	require.NoError(t, err)

	_, parseErr := uuid.Parse(req.ID)
	assert.NoError(t, parseErr)
	assert.Equal(t, model.DiscoveryStatusPending, req.Status)
	assert.Equal(t, "Ravi Kumar", req.Name)
	assert.Equal(t, "ravi@example.com", req.Email)
	assert.Equal(t, "anon-9", req.RequestedBy)
	assert.Equal(t, "T2506041234", req.UPIReference)

	stored, total, err := repo.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, req.ID, stored[0].ID)

	require.Len(t, queue.requests, 1)
	assert.Equal(t, notifications.Request{
		Type:  notifications.KindDiscovery,
		Name:  "Ravi Kumar",
		Email: "ravi@example.com",
		Date:  "4 June 2025",
		Time:  notifications.DiscoveryTimePlaceholder,
		UPIID: "T2506041234",
	}, queue.requests[0])
}

type stalledPublisher struct{}

func (stalledPublisher) Publish(ctx context.Context, _ kafka.Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSubmit_StalledBrokerDoesNotDelayResult(t *testing.T) {
	queue := notifications.NewKafkaQueue(stalledPublisher{}, "clinic-api", 100*time.Millisecond, 4, nil, logger.Discard())
	svc := newService(repository.NewMemoryDiscoveryRepository(), queue)

	ctx, cancel := context.WithTimeout(caller(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	req, err := svc.Submit(ctx, input())
	require.NoError(t, err)
	assert.NotNil(t, req)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	assert.NoError(t, queue.Stop(stopCtx))
}

func TestSubmit_IdenticalSubmissionsAreIndependent(t *testing.T) {
	repo := repository.NewMemoryDiscoveryRepository()
	svc := newService(repo, &mockQueue{})

	first, err := svc.Submit(caller(), input())
	require.NoError(t, err)
	second, err := svc.Submit(caller(), input())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	_, total, err := repo.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestSubmit_NotificationFailureIsSwallowed(t *testing.T) {
	queue := &mockQueue{err: notifications.ErrQueueFull}

	req, err := newService(repository.NewMemoryDiscoveryRepository(), queue).Submit(caller(), input())
	require.NoError(t, err)
	assert.NotNil(t, req)
}

func TestSubmit_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		ctx         context.Context
		repo        repository.DiscoveryRepository
		mutate      func(*model.DiscoveryInput)
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "no identity",
			ctx:         context.Background(),
			mutate:      func(*model.DiscoveryInput) {},
			wantStatus:  http.StatusServiceUnavailable,
			wantMessage: MsgNotConnected,
		},
		{
			name:        "empty message",
			ctx:         caller(),
			mutate:      func(in *model.DiscoveryInput) { in.Message = "  " },
			wantStatus:  http.StatusUnprocessableEntity,
			wantMessage: MsgFillAllFields,
		},
		{
			name:        "no preferred date",
			ctx:         caller(),
			mutate:      func(in *model.DiscoveryInput) { in.PreferredDate = "" },
			wantStatus:  http.StatusUnprocessableEntity,
			wantMessage: MsgSelectPreferred,
		},
		{
			name:        "store failure",
			ctx:         caller(),
			repo:        failingRepo{err: errors.New("no primary")},
			mutate:      func(*model.DiscoveryInput) {},
			wantStatus:  http.StatusServiceUnavailable,
			wantMessage: MsgSubmissionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := tt.repo
			if repo == nil {
				repo = repository.NewMemoryDiscoveryRepository()
			}
			queue := &mockQueue{}

			in := input()
			tt.mutate(in)
			req, err := newService(repo, queue).Submit(tt.ctx, in)

			assert.Nil(t, req)
			require.Error(t, err)
			appErr := apperrors.AsAppError(err)
			assert.Equal(t, tt.wantStatus, appErr.StatusCode())
			assert.Equal(t, tt.wantMessage, appErr.Message)
			assert.Empty(t, queue.requests)
		})
	}
}

func TestList_StoreFailure(t *testing.T) {
	_, _, err := newService(failingRepo{err: errors.New("timeout")}, &mockQueue{}).List(context.Background(), 10, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnavailable))
}
