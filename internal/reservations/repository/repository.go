package repository

import (
	"context"
	"time"

	"calendra/internal/reservations/calendar"
	"calendra/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	ReservationsCollection = "Reservations"
	ResourcesCollection    = "Resources"
	AuditCollection        = "Reservation_audit"
)

// ReservationStore is the durable side of the engine. Writes happen inside the
// resource's critical section and must complete before the in-memory calendar changes.
type ReservationStore interface {
	LoadCalendar(ctx context.Context, resourceID string) (*calendar.Calendar, error)
	PersistReservation(ctx context.Context, reservation *model.Reservation) error
	PersistCancellation(ctx context.Context, reservation *model.Reservation) error
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	FindByRequester(ctx context.Context, requesterID string, limit int, offset int64) ([]*model.Reservation, error)
	CountByRequester(ctx context.Context, requesterID string) (int64, error)
	FindExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error)
}

type ResourceRepository interface {
	Create(ctx context.Context, resource *model.Resource) error
	FindByID(ctx context.Context, id string) (*model.Resource, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Resource, error)
	Count(ctx context.Context) (int64, error)
}

type AuditLog interface {
	Record(ctx context.Context, entry model.AuditEntry) error
	FindByReservation(ctx context.Context, reservationID string) ([]model.AuditEntry, error)
}

// withTimeout bounds ctx by timeout unless ctx already expires sooner.
// A SessionContext is returned unchanged since wrapping it drops the session.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}

	return context.WithTimeout(ctx, timeout)
}

func activeStatuses() []model.ReservationStatus {
	return []model.ReservationStatus{model.StatusPending, model.StatusConfirmed}
}
