package events

import (
	"context"

	"calendra/pkg/logger"
	"calendra/pkg/model"
)

type LogPublisher struct {
	log *logger.Logger
}

func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{log: log.Component("events")}
}

func (p *LogPublisher) Publish(ctx context.Context, event model.Event) error {
	p.log.Ctx(ctx).Info("Reservation event",
		"event_id", event.ID,
		"event_type", event.Type,
		"reservation_id", event.ReservationID,
		"resource_id", event.ResourceID,
		"status", event.Status,
		"version", event.Version,
	)
	return nil
}
