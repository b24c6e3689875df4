package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"calendra/internal/reservations/events"
	"calendra/pkg/kafka"
	"calendra/pkg/logger"
	"calendra/pkg/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (s *recordingSender) Send(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

func reservationEvent(t *testing.T, eventType model.EventType, status model.ReservationStatus, version int64) model.Event {
	t.Helper()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	r := &model.Reservation{
		ID:          "res-1",
		ResourceID:  "room-a",
		RequesterID: "alice",
		Status:      status,
		Range:       model.TimeRange{Start: start, End: start.Add(time.Hour)},
		Version:     version,
	}
	return events.New(eventType, r, start)
}

func confirmedEvent(t *testing.T) model.Event {
	t.Helper()
	return reservationEvent(t, model.EventReservationConfirmed, model.StatusConfirmed, 2)
}

func message(t *testing.T, value any, schema string) kafka.Message {
	t.Helper()
	msg, err := kafka.NewMessage().WithKey("room-a").WithValue(value).WithSchemaVersion(schema).Build()
	require.NoError(t, err)
	return msg
}

func TestHandle_SendsNotification(t *testing.T) {
	sender := &recordingSender{}
	h := NewHandler(sender, NewMemoryVersionTracker(), logger.Discard())
	event := confirmedEvent(t)

	require.NoError(t, h.Handle(context.Background(), message(t, event, events.SchemaVersion)))

	require.Len(t, sender.sent, 1)
	n := sender.sent[0]
	require.Equal(t, "alice", n.RecipientID)
	require.Equal(t, "res-1", n.ReservationID)
	require.Equal(t, "Your reservation is confirmed", n.Subject)
	require.True(t, n.Range.Start.Equal(event.Range.Start))
}

func TestHandle_DuplicateDeliveryNotifiesOnce(t *testing.T) {
	sender := &recordingSender{}
	h := NewHandler(sender, NewMemoryVersionTracker(), logger.Discard())
	msg := message(t, confirmedEvent(t), events.SchemaVersion)

	require.NoError(t, h.Handle(context.Background(), msg))
	require.NoError(t, h.Handle(context.Background(), msg))
	require.Len(t, sender.sent, 1)
}

func TestHandle_OutOfOrderDeliveryKeepsLatest(t *testing.T) {
	sender := &recordingSender{}
	h := NewHandler(sender, NewMemoryVersionTracker(), logger.Discard())
	ctx := context.Background()

	cancelled := reservationEvent(t, model.EventReservationCancelled, model.StatusCancelled, 3)
	require.NoError(t, h.Handle(ctx, message(t, cancelled, events.SchemaVersion)))
	require.NoError(t, h.Handle(ctx, message(t, confirmedEvent(t), events.SchemaVersion)))

	require.Len(t, sender.sent, 1)
	require.Equal(t, "Your reservation was cancelled", sender.sent[0].Subject)
}

func TestHandle_RetryAfterSendFailureStillNotifies(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	h := NewHandler(sender, NewMemoryVersionTracker(), logger.Discard())
	msg := message(t, confirmedEvent(t), events.SchemaVersion)

	require.Error(t, h.Handle(context.Background(), msg))

	sender.err = nil
	require.NoError(t, h.Handle(context.Background(), msg))
	require.Len(t, sender.sent, 1)
}

func TestHandle_PermanentFailures(t *testing.T) {
	h := NewHandler(&recordingSender{}, NewMemoryVersionTracker(), logger.Discard())

	tests := []struct {
		name string
		msg  kafka.Message
	}{
		{"undecodable payload", kafka.Message{Value: []byte("{not json"), Headers: map[string]string{}}},
		{"unknown schema", message(t, confirmedEvent(t), "99")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Handle(context.Background(), tt.msg)
			var kerr *kafka.KafkaError
			require.ErrorAs(t, err, &kerr)
			require.Equal(t, kafka.ErrorTypePermanent, kerr.Type)
		})
	}
}

func TestHandle_SenderFailureIsTransient(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	h := NewHandler(sender, NewMemoryVersionTracker(), logger.Discard())

	err := h.Handle(context.Background(), message(t, confirmedEvent(t), events.SchemaVersion))
	var kerr *kafka.KafkaError
	require.ErrorAs(t, err, &kerr)
	require.Equal(t, kafka.ErrorTypeTransient, kerr.Type)
}

func TestHandle_IgnoresUnknownEventType(t *testing.T) {
	sender := &recordingSender{}
	h := NewHandler(sender, NewMemoryVersionTracker(), logger.Discard())
	event := confirmedEvent(t)
	event.Type = "ResourceRenamed"

	require.NoError(t, h.Handle(context.Background(), message(t, event, events.SchemaVersion)))
	require.Empty(t, sender.sent)
}

func TestRedisVersionTracker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tracker := NewRedisVersionTracker(client, time.Hour)
	ctx := context.Background()

	last, err := tracker.Last(ctx, "res-1")
	require.NoError(t, err)
	require.Zero(t, last)

	require.NoError(t, tracker.Advance(ctx, "res-1", 3))
	require.NoError(t, tracker.Advance(ctx, "res-1", 2))

	last, err = tracker.Last(ctx, "res-1")
	require.NoError(t, err)
	require.Equal(t, int64(3), last)

	mr.FastForward(2 * time.Hour)
	last, err = tracker.Last(ctx, "res-1")
	require.NoError(t, err)
	require.Zero(t, last)
}
