package events

import (
	"context"
	"errors"
	"time"

	"calendra/pkg/model"

	"github.com/google/uuid"
)

// Publisher delivers domain events to the notification side. Publishers are
// called after the resource lock is released and must not block for long.
type Publisher interface {
	Publish(ctx context.Context, event model.Event) error
}

// New builds the event describing r after a transition of type t.
func New(t model.EventType, r *model.Reservation, at time.Time) model.Event {
	return model.Event{
		ID:            uuid.NewString(),
		Type:          t,
		ReservationID: r.ID,
		ResourceID:    r.ResourceID,
		RequesterID:   r.RequesterID,
		Status:        r.Status,
		Range:         r.Range,
		Version:       r.Version,
		OccurredAt:    at.UTC(),
	}
}

// Fanout publishes to every sink and joins their errors. One failing sink does
// not stop the others.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event model.Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Discard struct{}

func (Discard) Publish(context.Context, model.Event) error { return nil }
