package model

import (
	"fmt"
	"time"
)

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusExpired   ReservationStatus = "expired"
	StatusRejected  ReservationStatus = "rejected"
)

// Active statuses occupy the calendar.
func (s ReservationStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s ReservationStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusExpired || s == StatusRejected
}

type Reservation struct {
	ID          string            `json:"id" bson:"_id"`
	ResourceID  string            `json:"resource_id" bson:"resource_id"`
	RequesterID string            `json:"requester_id" bson:"requester_id"`
	Range       TimeRange         `json:"range" bson:"range"`
	Status      ReservationStatus `json:"status" bson:"status"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	Version     int64             `json:"version" bson:"version"`
	CreatedAt   time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" bson:"updated_at"`
}

func (r *Reservation) Clone() *Reservation {
	if r == nil {
		return nil
	}
	out := *r
	if r.ExpiresAt != nil {
		exp := *r.ExpiresAt
		out.ExpiresAt = &exp
	}
	return &out
}

// HoldExpired reports whether a pending hold passed its deadline at now.
func (r *Reservation) HoldExpired(now time.Time) bool {
	return r.Status == StatusPending && r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

func (r *Reservation) String() string {
	return fmt.Sprintf("reservation %s on %s %s (%s)", r.ID, r.ResourceID, r.Range, r.Status)
}

// ReservationRequest is the input of a single-phase submit or a hold.
type ReservationRequest struct {
	ResourceID       string    `json:"resource_id" validate:"required,identifier"`
	RequesterID      string    `json:"requester_id" validate:"required,identifier"`
	Start            time.Time `json:"start" validate:"required"`
	End              time.Time `json:"end" validate:"required,gtfield=Start"`
	CapacityOverride *int      `json:"capacity_override,omitempty" validate:"omitempty,min=1,max=1000"`
}

func (r ReservationRequest) Range() (TimeRange, error) {
	return NewTimeRange(r.Start, r.End)
}

type RescheduleRequest struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtfield=Start"`
}
