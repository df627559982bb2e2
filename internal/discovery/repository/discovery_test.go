package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"clinic/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func request(id string, at time.Time) *model.DiscoveryRequest {
	return &model.DiscoveryRequest{
		ID:            id,
		Name:          "Ravi",
		Email:         "ravi@example.com",
		Message:       "Recurring migraines",
		PreferredDate: "2025-06-04",
		RequestedBy:   "anon-7",
		RequestedAt:   at,
		Status:        model.DiscoveryStatusPending,
	}
}

func TestMongoSubmit(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("stored", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		repo := newMongoDiscoveryRepository(mt.Coll, time.Second, time.Second)

		if err := repo.Submit(context.Background(), request("a", time.Now())); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	})

	mt.Run("store error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    91,
			Name:    "ShutdownInProgress",
			Message: "shutting down",
		}))
		repo := newMongoDiscoveryRepository(mt.Coll, time.Second, time.Second)

		if err := repo.Submit(context.Background(), request("a", time.Now())); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestMongoList(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("count and page", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(2)}}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "b"}, {Key: "name", Value: "Meera"}, {Key: "status", Value: model.DiscoveryStatusPending}},
				bson.D{{Key: "_id", Value: "a"}, {Key: "name", Value: "Ravi"}, {Key: "status", Value: model.DiscoveryStatusPending}},
			),
		)
		repo := newMongoDiscoveryRepository(mt.Coll, time.Second, time.Second)

		got, total, err := repo.List(context.Background(), 10, 0)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if total != 2 || len(got) != 2 {
			t.Fatalf("total=%d len=%d", total, len(got))
		}
		if got[0].ID != "b" || got[1].Name != "Ravi" {
			t.Errorf("unexpected rows: %+v %+v", got[0], got[1])
		}
	})
}

func TestMemoryRepository_IdenticalSubmissionsAreKept(t *testing.T) {
	repo := NewMemoryDiscoveryRepository()
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		req := request(fmt.Sprintf("id-%d", i), at)
		if err := repo.Submit(context.Background(), req); err != nil {
			t.Fatal(err)
		}
	}

	got, total, err := repo.List(context.Background(), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(got) != 3 {
		t.Fatalf("total=%d len=%d", total, len(got))
	}
	if got[0].ID != "id-2" || got[2].ID != "id-0" {
		t.Errorf("expected newest first, got %s..%s", got[0].ID, got[2].ID)
	}
}

func TestMemoryRepository_Paging(t *testing.T) {
	repo := NewMemoryDiscoveryRepository()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := repo.Submit(context.Background(), request(fmt.Sprintf("id-%d", i), base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name    string
		limit   int
		offset  int
		wantIDs []string
	}{
		{"first page", 2, 0, []string{"id-4", "id-3"}},
		{"second page", 2, 2, []string{"id-2", "id-1"}},
		{"past end", 2, 10, []string{}},
		{"negative offset", 1, -3, []string{"id-4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := repo.List(context.Background(), tt.limit, tt.offset)
			if err != nil {
				t.Fatal(err)
			}
			if total != 5 {
				t.Errorf("total = %d", total)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("got[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}
