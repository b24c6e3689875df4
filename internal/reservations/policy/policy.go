package policy

import (
	"fmt"
	"time"

	"calendra/internal/reservations/calendar"
	"calendra/pkg/model"
)

const (
	NameCapacity  = "capacity"
	NameExclusive = "exclusive"
)

// Buffer widens a candidate range before it is checked. Existing entries are never widened.
type Buffer struct {
	Before time.Duration
	After  time.Duration
}

type Decision struct {
	Allowed  bool
	Reason   string
	Blocking []*model.Reservation
}

func Allow() Decision {
	return Decision{Allowed: true}
}

func Deny(reason string, blocking []*model.Reservation) Decision {
	return Decision{Reason: reason, Blocking: blocking}
}

// Evaluator decides on a buffered candidate window given the entries overlapping it.
type Evaluator func(window model.TimeRange, overlapping []*model.Reservation, capacity int) Decision

// ConflictPolicy is a swappable conflict rule. The zero value is capacity-aware with no buffer.
type ConflictPolicy struct {
	name      string
	buffer    Buffer
	exclusive bool
	evaluate  Evaluator
}

func New(buffer Buffer) ConflictPolicy {
	return ConflictPolicy{name: NameCapacity, buffer: buffer, evaluate: CapacityAware}
}

// Exclusive ignores resource capacity and rejects any overlap.
func Exclusive(buffer Buffer) ConflictPolicy {
	return ConflictPolicy{name: NameExclusive, buffer: buffer, exclusive: true, evaluate: AnyOverlap}
}

func Custom(name string, buffer Buffer, fn Evaluator) ConflictPolicy {
	return ConflictPolicy{name: name, buffer: buffer, evaluate: fn}
}

func FromName(name string, buffer Buffer) (ConflictPolicy, error) {
	switch name {
	case "", NameCapacity:
		return New(buffer), nil
	case NameExclusive:
		return Exclusive(buffer), nil
	default:
		return ConflictPolicy{}, fmt.Errorf("unknown conflict policy %q", name)
	}
}

func (p ConflictPolicy) Name() string {
	if p.name == "" {
		return NameCapacity
	}
	return p.name
}

func (p ConflictPolicy) Buffer() Buffer {
	return p.buffer
}

// Window is the range the candidate effectively occupies once buffers apply.
func (p ConflictPolicy) Window(candidate model.TimeRange) model.TimeRange {
	return candidate.Expand(p.buffer.Before, p.buffer.After)
}

// Capacity is the number of concurrent reservations the policy lets the resource hold.
func (p ConflictPolicy) Capacity(resourceCapacity int) int {
	if p.exclusive || resourceCapacity < 1 {
		return 1
	}
	return resourceCapacity
}

// Evaluate decides whether candidate can be placed next to existing.
// Entries in existing that do not overlap the buffered window are ignored.
func (p ConflictPolicy) Evaluate(candidate model.TimeRange, existing []*model.Reservation, capacity int) Decision {
	window := p.Window(candidate)

	var overlapping []*model.Reservation
	for _, r := range existing {
		if r.Range.Overlaps(window) {
			overlapping = append(overlapping, r)
		}
	}
	if len(overlapping) == 0 {
		return Allow()
	}

	fn := p.evaluate
	if fn == nil {
		fn = CapacityAware
	}
	return fn(window, overlapping, p.Capacity(capacity))
}

func CapacityAware(window model.TimeRange, overlapping []*model.Reservation, capacity int) Decision {
	if capacity < 1 {
		capacity = 1
	}
	peak := calendar.MaxConcurrent(window, calendar.Ranges(overlapping))
	if peak >= capacity {
		return Deny(fmt.Sprintf("capacity %d reached during %s", capacity, window), overlapping)
	}
	return Allow()
}

func AnyOverlap(window model.TimeRange, overlapping []*model.Reservation, _ int) Decision {
	if len(overlapping) > 0 {
		return Deny(fmt.Sprintf("%d reservation(s) overlap %s", len(overlapping), window), overlapping)
	}
	return Allow()
}
