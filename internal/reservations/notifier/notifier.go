// Package notifier turns reservation events read from Kafka into requester
// notifications. The engine publishes after releasing the resource lock, so
// two events for one reservation can arrive out of order, and Kafka may
// redeliver. Events are therefore ordered per reservation by Version: only an
// event newer than the last one handled produces a notification.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"calendra/internal/reservations/events"
	"calendra/pkg/kafka"
	"calendra/pkg/logger"
	"calendra/pkg/model"

	"github.com/redis/go-redis/v9"
)

// Sender delivers one notification. Errors are retried by the consumer.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

type Notification struct {
	RecipientID   string
	ReservationID string
	ResourceID    string
	Subject       string
	Range         model.TimeRange
}

// VersionTracker remembers the highest reservation version notified so far.
// Advance never moves a reservation backwards.
type VersionTracker interface {
	Last(ctx context.Context, reservationID string) (int64, error)
	Advance(ctx context.Context, reservationID string, version int64) error
}

type Handler struct {
	sender   Sender
	versions VersionTracker
	log      *logger.Logger
}

func NewHandler(sender Sender, versions VersionTracker, log *logger.Logger) *Handler {
	return &Handler{sender: sender, versions: versions, log: log.Component("notifier")}
}

var subjects = map[model.EventType]string{
	model.EventReservationConfirmed:   "Your reservation is confirmed",
	model.EventReservationHeld:        "Your reservation is on hold, confirm it before it expires",
	model.EventReservationCancelled:   "Your reservation was cancelled",
	model.EventReservationRejected:    "Your reservation could not be placed",
	model.EventReservationExpired:     "Your hold expired",
	model.EventReservationRescheduled: "Your reservation was moved",
}

// Handle is a kafka.MessageHandler.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	if v := msg.Headers[kafka.HeaderSchemaVersion]; v != "" && v != events.SchemaVersion {
		return kafka.NewPermanentError("unsupported schema version "+v, nil)
	}

	var event model.Event
	if err := msg.DecodeValue(&event); err != nil {
		return kafka.NewPermanentError("decode reservation event", err)
	}
	subject, ok := subjects[event.Type]
	if !ok {
		h.log.Debug("Ignoring event type", "event_type", event.Type)
		return nil
	}

	// events without a version predate sequencing and are always delivered
	sequenced := event.ReservationID != "" && event.Version > 0
	if sequenced {
		last, err := h.versions.Last(ctx, event.ReservationID)
		if err != nil {
			return kafka.NewTransientError("version lookup", err)
		}
		if event.Version <= last {
			h.log.Debug("Skipping stale or duplicate event",
				"event_id", event.ID,
				"reservation_id", event.ReservationID,
				"version", event.Version,
				"last_version", last,
			)
			return nil
		}
	}

	n := Notification{
		RecipientID:   event.RequesterID,
		ReservationID: event.ReservationID,
		ResourceID:    event.ResourceID,
		Subject:       subject,
		Range:         event.Range,
	}
	if err := h.sender.Send(ctx, n); err != nil {
		return kafka.NewTransientError(fmt.Sprintf("send notification for %s", event.ReservationID), err)
	}

	if sequenced {
		if err := h.versions.Advance(ctx, event.ReservationID, event.Version); err != nil {
			// already sent, so a retry could only duplicate it
			h.log.Warn("Failed to record notified version",
				"reservation_id", event.ReservationID,
				"version", event.Version,
				"error", err,
			)
		}
	}
	return nil
}

// LogSender writes notifications to the service log.
type LogSender struct {
	log *logger.Logger
}

func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, n Notification) error {
	s.log.Ctx(ctx).Info("Notification sent",
		"recipient_id", n.RecipientID,
		"reservation_id", n.ReservationID,
		"resource_id", n.ResourceID,
		"subject", n.Subject,
		"start", n.Range.Start,
		"end", n.Range.End,
	)
	return nil
}

// advanceScript stores ARGV[1] only when it is above the current value.
var advanceScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if tonumber(ARGV[1]) <= current then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1
`)

const versionKeyPrefix = "calendra:notified:"

// RedisVersionTracker shares notified versions across notifier replicas and
// forgets a reservation after ttl without new events.
type RedisVersionTracker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisVersionTracker(client *redis.Client, ttl time.Duration) *RedisVersionTracker {
	return &RedisVersionTracker{client: client, ttl: ttl}
}

func (t *RedisVersionTracker) Last(ctx context.Context, reservationID string) (int64, error) {
	v, err := t.client.Get(ctx, versionKeyPrefix+reservationID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (t *RedisVersionTracker) Advance(ctx context.Context, reservationID string, version int64) error {
	return advanceScript.Run(ctx, t.client, []string{versionKeyPrefix + reservationID}, version, t.ttl.Milliseconds()).Err()
}

// MemoryVersionTracker is process local and unbounded; for tests and single instances.
type MemoryVersionTracker struct {
	mu       sync.Mutex
	versions map[string]int64
}

func NewMemoryVersionTracker() *MemoryVersionTracker {
	return &MemoryVersionTracker{versions: make(map[string]int64)}
}

func (t *MemoryVersionTracker) Last(_ context.Context, reservationID string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.versions[reservationID], nil
}

func (t *MemoryVersionTracker) Advance(_ context.Context, reservationID string, version int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if version > t.versions[reservationID] {
		t.versions[reservationID] = version
	}
	return nil
}
