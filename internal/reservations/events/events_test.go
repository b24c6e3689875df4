package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"calendra/pkg/kafka"
	"calendra/pkg/model"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

func sampleEvent() model.Event {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	r := &model.Reservation{
		ID:          "res-1",
		ResourceID:  "room-a",
		RequesterID: "alice",
		Range:       model.TimeRange{Start: start, End: start.Add(time.Hour)},
		Status:      model.StatusConfirmed,
		Version:     2,
	}
	return New(model.EventReservationConfirmed, r, start)
}

type recordingProducer struct {
	msgs []kafka.Message
	err  error
}

func (p *recordingProducer) Publish(_ context.Context, msg kafka.Message) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

func TestKafkaPublisher_KeysByResource(t *testing.T) {
	producer := &recordingProducer{}
	pub := NewKafkaPublisher(producer)
	event := sampleEvent()

	require.NoError(t, pub.Publish(context.Background(), event))
	require.Len(t, producer.msgs, 1)

	msg := producer.msgs[0]
	require.Equal(t, "room-a", msg.Key)
	require.Equal(t, string(model.EventReservationConfirmed), msg.GetEventType())
	require.Equal(t, event.ID, msg.GetEventID())
	require.Equal(t, "res-1", msg.GetCorrelationID())

	var decoded model.Event
	require.NoError(t, msg.DecodeValue(&decoded))
	require.Equal(t, event.ReservationID, decoded.ReservationID)
	require.Equal(t, int64(2), decoded.Version)
}

func TestKafkaPublisher_WrapsErrors(t *testing.T) {
	boom := errors.New("broker down")
	pub := NewKafkaPublisher(&recordingProducer{err: boom})

	err := pub.Publish(context.Background(), sampleEvent())
	require.ErrorIs(t, err, boom)
}

type recordingConn struct {
	msgs []*nats.Msg
}

func (c *recordingConn) PublishMsg(msg *nats.Msg) error {
	c.msgs = append(c.msgs, msg)
	return nil
}

func TestNATSPublisher_SubjectPerResource(t *testing.T) {
	conn := &recordingConn{}
	pub := NewNATSPublisher(conn, "reservations.events")

	require.NoError(t, pub.Publish(context.Background(), sampleEvent()))
	require.Len(t, conn.msgs, 1)
	require.Equal(t, "reservations.events.room-a", conn.msgs[0].Subject)
	require.Equal(t, string(model.EventReservationConfirmed), conn.msgs[0].Header.Get("x-event-type"))

	var decoded model.Event
	require.NoError(t, json.Unmarshal(conn.msgs[0].Data, &decoded))
	require.Equal(t, "res-1", decoded.ReservationID)
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, model.Event) error { return f.err }

func TestFanout_DeliversToAllAndJoinsErrors(t *testing.T) {
	first := errors.New("first")
	conn := &recordingConn{}
	fanout := Fanout{failingPublisher{err: first}, NewNATSPublisher(conn, "s")}

	err := fanout.Publish(context.Background(), sampleEvent())
	require.ErrorIs(t, err, first)
	require.Len(t, conn.msgs, 1)

	require.NoError(t, Fanout{Discard{}}.Publish(context.Background(), sampleEvent()))
}
