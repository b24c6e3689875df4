package events

import (
	"context"
	"fmt"

	"calendra/pkg/kafka"
	"calendra/pkg/model"
)

const (
	SchemaVersion = "1"
	Source        = "calendra-reservations"
)

type kafkaProducer interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaPublisher keys every message by resource id so one resource's events stay ordered.
type KafkaPublisher struct {
	producer kafkaProducer
}

func NewKafkaPublisher(producer kafkaProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event model.Event) error {
	msg, err := NewKafkaMessage(ctx, event)
	if err != nil {
		return err
	}
	if err := p.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish %s for reservation %s: %w", event.Type, event.ReservationID, err)
	}
	return nil
}

func NewKafkaMessage(ctx context.Context, event model.Event) (kafka.Message, error) {
	return kafka.NewMessage().
		WithKey(event.ResourceID).
		WithValue(event).
		WithEventID(event.ID).
		WithEventType(string(event.Type)).
		WithCorrelationID(event.ReservationID).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		WithTimestamp(event.OccurredAt).
		WithTrace(ctx).
		Build()
}
