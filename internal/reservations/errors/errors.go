package errors

import (
	"errors"
	"fmt"
	"strings"

	"calendra/pkg/model"
)

var (
	ErrValidation = errors.New("reservation request is invalid")

	ErrConflict = errors.New("reservation conflicts with existing reservations")

	ErrNotFound = errors.New("not found")

	ErrForbidden = errors.New("actor may not modify this reservation")

	ErrInvalidTransition = errors.New("invalid reservation state transition")

	// ErrAlreadyCompleted is benign: the reservation is returned unchanged alongside it.
	ErrAlreadyCompleted = errors.New("reservation already completed")

	ErrHoldExpired = errors.New("hold expired before confirmation")

	ErrPersistence = errors.New("reservation store failure")

	ErrAlreadyExists = errors.New("already exists")

	// ErrVersionConflict means the stored reservation is already at or past the
	// version being written, usually because another process held the lease.
	ErrVersionConflict = errors.New("reservation was modified concurrently")
)

type ValidationError struct {
	Field  string
	Reason string
}

func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%v: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ConflictError lists every reservation that blocks the candidate, not only the first one found.
type ConflictError struct {
	ResourceID  string
	Range       model.TimeRange
	BlockingIDs []string
	Reason      string
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("%v: %s on resource %s blocked by [%s]",
		ErrConflict, e.Range, e.ResourceID, strings.Join(e.BlockingIDs, ", "))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

type NotFoundError struct {
	Kind string
	ID   string
}

func NotFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q %v", e.Kind, e.ID, ErrNotFound)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

type InvalidTransitionError struct {
	From model.ReservationStatus
	To   model.ReservationStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%v: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
