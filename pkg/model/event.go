package model

import "time"

type EventType string

const (
	EventReservationConfirmed   EventType = "ReservationConfirmed"
	EventReservationHeld        EventType = "ReservationHeld"
	EventReservationCancelled   EventType = "ReservationCancelled"
	EventReservationRejected    EventType = "ReservationRejected"
	EventReservationExpired     EventType = "ReservationExpired"
	EventReservationRescheduled EventType = "ReservationRescheduled"
)

// Event is emitted after a reservation changed state and its resource lock was released.
type Event struct {
	ID            string            `json:"id"`
	Type          EventType         `json:"type"`
	ReservationID string            `json:"reservation_id"`
	ResourceID    string            `json:"resource_id"`
	RequesterID   string            `json:"requester_id"`
	Status        ReservationStatus `json:"status"`
	Range         TimeRange         `json:"range"`
	Version       int64             `json:"version"`
	BlockingIDs   []string          `json:"blocking_ids,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

type AuditEntry struct {
	ID            string            `json:"id" bson:"_id"`
	ReservationID string            `json:"reservation_id" bson:"reservation_id"`
	ResourceID    string            `json:"resource_id" bson:"resource_id"`
	ActorID       string            `json:"actor_id,omitempty" bson:"actor_id,omitempty"`
	From          ReservationStatus `json:"from,omitempty" bson:"from,omitempty"`
	To            ReservationStatus `json:"to" bson:"to"`
	Reason        string            `json:"reason,omitempty" bson:"reason,omitempty"`
	At            time.Time         `json:"at" bson:"at"`
}

// Slot is a fixed-step view of availability, as rendered by timetable screens.
type Slot struct {
	Range     TimeRange `json:"range"`
	Available bool      `json:"available"`
	Remaining int       `json:"remaining"`
}
