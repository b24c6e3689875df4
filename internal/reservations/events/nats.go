package events

import (
	"context"
	"encoding/json"
	"fmt"

	"calendra/pkg/model"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/trace"
)

type natsConn interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSPublisher writes events to subject.<resource id>.
type NATSPublisher struct {
	conn    natsConn
	subject string
}

func NewNATSPublisher(conn natsConn, subject string) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject}
}

func (p *NATSPublisher) Publish(ctx context.Context, event model.Event) error {
	if p == nil || p.conn == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := nats.NewMsg(p.subject + "." + event.ResourceID)
	msg.Data = payload
	msg.Header.Set("x-event-id", event.ID)
	msg.Header.Set("x-event-type", string(event.Type))
	msg.Header.Set("x-reservation-id", event.ReservationID)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		msg.Header.Set("x-trace-id", sc.TraceID().String())
	}

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s to nats: %w", event.Type, err)
	}
	return nil
}
