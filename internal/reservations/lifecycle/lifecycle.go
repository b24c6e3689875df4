package lifecycle

import (
	"time"

	reservationerrors "calendra/internal/reservations/errors"
	"calendra/pkg/model"
)

var allowedTransitions = map[model.ReservationStatus][]model.ReservationStatus{
	model.StatusPending:   {model.StatusConfirmed, model.StatusExpired, model.StatusRejected},
	model.StatusConfirmed: {model.StatusCancelled},
}

func CanTransition(from, to model.ReservationStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves r to status to and bumps its version.
func Transition(r *model.Reservation, to model.ReservationStatus, at time.Time) error {
	if !CanTransition(r.Status, to) {
		return &reservationerrors.InvalidTransitionError{From: r.Status, To: to}
	}

	r.Status = to
	r.Version++
	r.UpdatedAt = at
	if to == model.StatusConfirmed {
		r.ExpiresAt = nil
	}
	return nil
}

// Cancel applies a cancellation at now. It reports false without error when r
// is already cancelled, and ErrAlreadyCompleted when r ended before now.
func Cancel(r *model.Reservation, now time.Time) (bool, error) {
	switch r.Status {
	case model.StatusCancelled:
		return false, nil
	case model.StatusConfirmed:
		if !r.Range.End.After(now) {
			return false, reservationerrors.ErrAlreadyCompleted
		}
	}

	if err := Transition(r, model.StatusCancelled, now); err != nil {
		return false, err
	}
	return true, nil
}

// Confirm turns a live hold into a confirmed reservation, or expires it when
// its deadline passed, in which case ErrHoldExpired is returned with r mutated.
func Confirm(r *model.Reservation, now time.Time) (bool, error) {
	switch r.Status {
	case model.StatusConfirmed:
		return false, nil
	case model.StatusExpired:
		return false, reservationerrors.ErrHoldExpired
	}

	if r.HoldExpired(now) {
		if err := Transition(r, model.StatusExpired, now); err != nil {
			return false, err
		}
		return true, reservationerrors.ErrHoldExpired
	}

	if err := Transition(r, model.StatusConfirmed, now); err != nil {
		return false, err
	}
	return true, nil
}
