package mongo

import (
	"context"
	"fmt"

	appointmentsrepo "clinic/internal/appointments/repository"
	discoveryrepo "clinic/internal/discovery/repository"
	"clinic/internal/migrations/mongo/validators"
	"clinic/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	AppointmentsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "effective_moment", Value: 1}}},
		{Keys: bson.D{{Key: "booked_by", Value: 1}, {Key: "booked_at", Value: -1}}},
	}

	DiscoveryCallsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "requested_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "requested_at", Value: -1}}},
	}
)

// CollectionDef is one managed collection: its schema validator and indexes.
type CollectionDef struct {
	Name      string
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func Collections() []CollectionDef {
	return []CollectionDef{
		{
			Name:      appointmentsrepo.CollectionName,
			Indexes:   AppointmentsIndexes,
			Validator: validators.AppointmentValidator,
		},
		{
			Name:      discoveryrepo.CollectionName,
			Indexes:   DiscoveryCallsIndexes,
			Validator: validators.DiscoveryCallValidator,
		},
	}
}

// RunMigration creates or updates every collection with its schema
// validator and indexes. It is safe to run repeatedly.
func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running clinic Mongo migrations", "database", db.Name())

	for _, def := range Collections() {
		if err := ensureCollection(ctx, db, def.Name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
