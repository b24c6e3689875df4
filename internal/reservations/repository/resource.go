package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationerrors "calendra/internal/reservations/errors"
	"calendra/pkg/config"
	"calendra/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoResourceRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoResourceRepository(cfg *config.Config) ResourceRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoResourceRepository{
		cfg:        cfg,
		collection: db.Collection(ResourcesCollection),
	}
}

func (r *mongoResourceRepository) Create(ctx context.Context, resource *model.Resource) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	prepareResource(resource)
	if _, err := r.collection.InsertOne(ctx, resource); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("resource %s: %w", resource.ID, reservationerrors.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create resource: %w", err)
	}
	return nil
}

func (r *mongoResourceRepository) FindByID(ctx context.Context, id string) (*model.Resource, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var resource model.Resource
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&resource); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationerrors.NotFound("resource", id)
		}
		return nil, fmt.Errorf("failed to find resource: %w", err)
	}
	resource.CreatedAt = resource.CreatedAt.UTC()
	return &resource, nil
}

func (r *mongoResourceRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Resource, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find resources: %w", err)
	}
	defer cursor.Close(ctx)

	var resources []*model.Resource
	if err = cursor.All(ctx, &resources); err != nil {
		return nil, fmt.Errorf("failed to decode resources: %w", err)
	}
	return resources, nil
}

func (r *mongoResourceRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count resources: %w", err)
	}
	return count, nil
}

func prepareResource(resource *model.Resource) {
	if resource.ID == "" {
		resource.ID = uuid.NewString()
	}
	if resource.Capacity < 1 {
		resource.Capacity = 1
	}
	resource.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
}
