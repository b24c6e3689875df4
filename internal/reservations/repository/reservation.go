package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"calendra/internal/reservations/calendar"
	reservationerrors "calendra/internal/reservations/errors"
	"calendra/pkg/config"
	"calendra/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoReservationStore struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoReservationStore(cfg *config.Config) ReservationStore {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationStore{
		cfg:        cfg,
		collection: db.Collection(ReservationsCollection),
	}
}

func (s *mongoReservationStore) LoadCalendar(ctx context.Context, resourceID string) (*calendar.Calendar, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"resource_id": resourceID,
		"status":      bson.M{"$in": activeStatuses()},
	}
	opts := options.Find().SetSort(bson.D{{Key: "range.start", Value: 1}})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load calendar for %s: %w", reservationerrors.ErrPersistence, resourceID, err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err := cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("%w: failed to decode calendar for %s: %w", reservationerrors.ErrPersistence, resourceID, err)
	}

	return calendar.New(resourceID, normalize(reservations)...), nil
}

func (s *mongoReservationStore) PersistReservation(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := withTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	// A stale writer misses the filter and its upsert collides on _id.
	filter := bson.M{"_id": reservation.ID, "version": bson.M{"$lt": reservation.Version}}
	opts := options.Replace().SetUpsert(true)

	if _, err := s.collection.ReplaceOne(ctx, filter, reservation, opts); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", reservationerrors.ErrVersionConflict, reservation.ID)
		}
		return fmt.Errorf("%w: failed to persist reservation %s: %w", reservationerrors.ErrPersistence, reservation.ID, err)
	}
	return nil
}

func (s *mongoReservationStore) PersistCancellation(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := withTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": reservation.ID, "version": bson.M{"$lt": reservation.Version}}
	update := bson.M{
		"$set": bson.M{
			"status":     model.StatusCancelled,
			"updated_at": reservation.UpdatedAt,
			"version":    reservation.Version,
		},
	}

	result, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("%w: failed to cancel reservation %s: %w", reservationerrors.ErrPersistence, reservation.ID, err)
	}
	if result.MatchedCount == 0 {
		n, err := s.collection.CountDocuments(ctx, bson.M{"_id": reservation.ID})
		if err != nil {
			return fmt.Errorf("%w: failed to cancel reservation %s: %w", reservationerrors.ErrPersistence, reservation.ID, err)
		}
		if n == 0 {
			return reservationerrors.NotFound("reservation", reservation.ID)
		}
		return fmt.Errorf("%w: %s", reservationerrors.ErrVersionConflict, reservation.ID)
	}
	return nil
}

func (s *mongoReservationStore) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	var reservation model.Reservation
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationerrors.NotFound("reservation", id)
		}
		return nil, fmt.Errorf("%w: failed to find reservation %s: %w", reservationerrors.ErrPersistence, id, err)
	}

	return normalize([]*model.Reservation{&reservation})[0], nil
}

func (s *mongoReservationStore) FindByRequester(ctx context.Context, requesterID string, limit int, offset int64) ([]*model.Reservation, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "range.start", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := s.collection.Find(ctx, bson.M{"requester_id": requesterID}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to find reservations: %w", reservationerrors.ErrPersistence, err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err := cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("%w: failed to decode reservations: %w", reservationerrors.ErrPersistence, err)
	}

	return normalize(reservations), nil
}

func (s *mongoReservationStore) CountByRequester(ctx context.Context, requesterID string) (int64, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	count, err := s.collection.CountDocuments(ctx, bson.M{"requester_id": requesterID})
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count reservations: %w", reservationerrors.ErrPersistence, err)
	}
	return count, nil
}

func (s *mongoReservationStore) FindExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"status":     model.StatusPending,
		"expires_at": bson.M{"$lte": now},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "expires_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to find expired holds: %w", reservationerrors.ErrPersistence, err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err := cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("%w: failed to decode expired holds: %w", reservationerrors.ErrPersistence, err)
	}

	return normalize(reservations), nil
}

// normalize restores UTC locations, which the driver decodes as local time.
func normalize(reservations []*model.Reservation) []*model.Reservation {
	for _, r := range reservations {
		r.Range.Start = r.Range.Start.UTC()
		r.Range.End = r.Range.End.UTC()
		r.CreatedAt = r.CreatedAt.UTC()
		r.UpdatedAt = r.UpdatedAt.UTC()
		if r.ExpiresAt != nil {
			exp := r.ExpiresAt.UTC()
			r.ExpiresAt = &exp
		}
	}
	return reservations
}
