package mongo

import (
	"context"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"calendra/internal/migrations/mongo/validators"
	"calendra/internal/reservations/repository"
	"calendra/pkg/logger"
)

var (
	ReservationsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "resource_id", Value: 1}, {Key: "status", Value: 1}, {Key: "range.start", Value: 1}},
			Options: options.Index().SetName("calendar_load"),
		},
		{
			Keys:    bson.D{{Key: "requester_id", Value: 1}, {Key: "range.start", Value: 1}},
			Options: options.Index().SetName("by_requester"),
		},
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetName("pending_holds").
				SetPartialFilterExpression(bson.M{"status": "pending"}),
		},
	}

	ResourcesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}},
	}

	AuditIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "reservation_id", Value: 1}, {Key: "at", Value: 1}}},
		{Keys: bson.D{{Key: "resource_id", Value: 1}, {Key: "at", Value: -1}}},
	}
)

type collectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func collections() map[string]collectionDef {
	return map[string]collectionDef{
		repository.ReservationsCollection: {
			Indexes:   ReservationsIndexes,
			Validator: validators.ReservationValidator,
		},
		repository.ResourcesCollection: {
			Indexes:   ResourcesIndexes,
			Validator: validators.ResourceValidator,
		},
		repository.AuditCollection: {
			Indexes:   AuditIndexes,
			Validator: validators.AuditValidator,
		},
	}
}

// RunMigration creates or updates every collection with its validator and indexes. It is idempotent.
func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	defs := collections()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := defs[name]
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
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
