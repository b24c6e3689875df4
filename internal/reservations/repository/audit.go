package repository

import (
	"context"
	"fmt"

	"calendra/pkg/config"
	"calendra/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoAuditLog struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoAuditLog(cfg *config.Config) AuditLog {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAuditLog{
		cfg:        cfg,
		collection: db.Collection(AuditCollection),
	}
}

func (a *mongoAuditLog) Record(ctx context.Context, entry model.AuditEntry) error {
	ctx, cancel := withTimeout(ctx, a.cfg.WriteTimeout)
	defer cancel()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if _, err := a.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to record audit entry for %s: %w", entry.ReservationID, err)
	}
	return nil
}

func (a *mongoAuditLog) FindByReservation(ctx context.Context, reservationID string) ([]model.AuditEntry, error) {
	ctx, cancel := withTimeout(ctx, a.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "at", Value: 1}})
	cursor, err := a.collection.Find(ctx, bson.M{"reservation_id": reservationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []model.AuditEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode audit entries: %w", err)
	}
	for i := range entries {
		entries[i].At = entries[i].At.UTC()
	}
	return entries, nil
}
