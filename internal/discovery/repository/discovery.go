package repository

import (
	"context"
	"fmt"
	"time"

	"clinic/pkg/config"
	"clinic/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "discovery_calls"

	DefaultLimit = 50
	MaxLimit     = 500
)

// DiscoveryRepository is an append-only log of discovery call requests.
// Nothing is unique except the generated id, so identical submissions are
// stored as separate records.
type DiscoveryRepository interface {
	Submit(ctx context.Context, req *model.DiscoveryRequest) error
	List(ctx context.Context, limit, offset int) ([]*model.DiscoveryRequest, int64, error)
}

type mongoDiscoveryRepository struct {
	collection   *mongo.Collection
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func NewMongoDiscoveryRepository(cfg *config.Config) DiscoveryRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return newMongoDiscoveryRepository(db.Collection(CollectionName), cfg.ReadTimeout, cfg.WriteTimeout)
}

func newMongoDiscoveryRepository(collection *mongo.Collection, readTimeout, writeTimeout time.Duration) *mongoDiscoveryRepository {
	return &mongoDiscoveryRepository{
		collection:   collection,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

func (r *mongoDiscoveryRepository) Submit(ctx context.Context, req *model.DiscoveryRequest) error {
	ctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, req); err != nil {
		return fmt.Errorf("failed to store discovery request: %w", err)
	}
	return nil
}

// List returns requests newest first together with the total count.
func (r *mongoDiscoveryRepository) List(ctx context.Context, limit, offset int) ([]*model.DiscoveryRequest, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	limit, offset = normalizePage(limit, offset)

	total, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count discovery requests: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "requested_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list discovery requests: %w", err)
	}
	defer cursor.Close(ctx)

	var requests []*model.DiscoveryRequest
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, 0, fmt.Errorf("failed to decode discovery requests: %w", err)
	}
	if requests == nil {
		requests = []*model.DiscoveryRequest{}
	}
	return requests, total, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
