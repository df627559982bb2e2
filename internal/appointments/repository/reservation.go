package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	appointmentserrors "clinic/internal/appointments/errors"
	"clinic/pkg/config"
	"clinic/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "appointments"
)

// ReservationRepository is the only writer of the slot namespace. Reserve
// must be atomic per slot id: of any number of concurrent callers for one
// slot, exactly one sees nil and the rest see ErrSlotTaken.
type ReservationRepository interface {
	Reserve(ctx context.Context, reservation *model.Reservation) error
	ListOccupied(ctx context.Context, from, to time.Time) ([]string, error)
	Watch(ctx context.Context) (ReservationStream, error)
}

// ReservationStream yields reservations as they are created.
type ReservationStream interface {
	Next(ctx context.Context) (*model.Reservation, error)
	Close(ctx context.Context) error
}

type mongoReservationRepository struct {
	collection   *mongo.Collection
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return newMongoReservationRepository(db.Collection(CollectionName), cfg.ReadTimeout, cfg.WriteTimeout)
}

func newMongoReservationRepository(collection *mongo.Collection, readTimeout, writeTimeout time.Duration) *mongoReservationRepository {
	return &mongoReservationRepository{
		collection:   collection,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// withTimeout caps ctx at timeout without extending an earlier deadline.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

// Reserve inserts the reservation keyed by its slot id. A plain insert is
// used so the primary key index rejects the second writer; an upsert would
// silently overwrite it.
func (r *mongoReservationRepository) Reserve(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := withTimeout(ctx, r.writeTimeout)
	defer cancel()

	// The caller's record only changes once the insert is committed.
	record := *reservation
	record.BookedAt = time.Now().UTC().Truncate(time.Millisecond)
	if _, err := r.collection.InsertOne(ctx, &record); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", appointmentserrors.ErrSlotTaken, reservation.SlotID)
		}
		return fmt.Errorf("failed to reserve slot: %w", err)
	}
	reservation.BookedAt = record.BookedAt
	return nil
}

type occupiedRow struct {
	SlotID string `bson:"_id"`
}

func (r *mongoReservationRepository) ListOccupied(ctx context.Context, from, to time.Time) ([]string, error) {
	ctx, cancel := withTimeout(ctx, r.readTimeout)
	defer cancel()

	filter := bson.M{
		"effective_moment": bson.M{
			"$gte": from.UTC(),
			"$lt":  to.UTC(),
		},
	}
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "effective_moment", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list occupied slots: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []occupiedRow
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode occupied slots: %w", err)
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.SlotID)
	}
	return ids, nil
}

func (r *mongoReservationRepository) Watch(ctx context.Context) (ReservationStream, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "operationType", Value: "insert"}}}},
	}
	cs, err := r.collection.Watch(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to open change stream: %w", err)
	}
	return &changeStream{cs: cs}, nil
}

type changeEvent struct {
	FullDocument model.Reservation `bson:"fullDocument"`
}

type changeStream struct {
	cs *mongo.ChangeStream
}

func (s *changeStream) Next(ctx context.Context) (*model.Reservation, error) {
	if !s.cs.Next(ctx) {
		if err := s.cs.Err(); err != nil {
			return nil, fmt.Errorf("change stream failed: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, appointmentserrors.ErrStreamClosed
	}

	var event changeEvent
	if err := s.cs.Decode(&event); err != nil {
		return nil, fmt.Errorf("failed to decode change event: %w", err)
	}
	return &event.FullDocument, nil
}

func (s *changeStream) Close(ctx context.Context) error {
	if err := s.cs.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
