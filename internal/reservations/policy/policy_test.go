package policy

import (
	"testing"
	"time"

	"calendra/pkg/model"

	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

func hm(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func span(start, end time.Time) model.TimeRange {
	return model.TimeRange{Start: start, End: end}
}

func booked(id string, start, end time.Time) *model.Reservation {
	return &model.Reservation{ID: id, Range: span(start, end), Status: model.StatusConfirmed}
}

func TestConflictPolicy_Buffer(t *testing.T) {
	existing := []*model.Reservation{booked("a", hm(9, 0), hm(10, 0))}
	candidate := span(hm(10, 0), hm(11, 0))

	require.True(t, New(Buffer{}).Evaluate(candidate, existing, 1).Allowed, "touching ranges never conflict")

	buffered := New(Buffer{Before: 15 * time.Minute})
	decision := buffered.Evaluate(candidate, existing, 1)
	require.False(t, decision.Allowed)
	require.Len(t, decision.Blocking, 1)
	require.Equal(t, "a", decision.Blocking[0].ID)

	require.Equal(t, span(hm(9, 45), hm(11, 0)), buffered.Window(candidate))
}

func TestConflictPolicy_BufferAfterOnlyWidensCandidate(t *testing.T) {
	// the existing entry is not widened, so a gap of one minute is enough
	existing := []*model.Reservation{booked("a", hm(11, 1), hm(12, 0))}
	p := New(Buffer{After: time.Minute})

	require.True(t, p.Evaluate(span(hm(10, 0), hm(11, 0)), existing, 1).Allowed)
	require.False(t, p.Evaluate(span(hm(10, 0), hm(11, 1)), existing, 1).Allowed)
}

func TestConflictPolicy_Capacity(t *testing.T) {
	existing := []*model.Reservation{
		booked("a", hm(9, 0), hm(10, 0)),
		booked("b", hm(9, 30), hm(10, 30)),
		booked("c", hm(12, 0), hm(13, 0)),
	}
	candidate := span(hm(9, 0), hm(11, 0))

	tests := []struct {
		name     string
		policy   ConflictPolicy
		capacity int
		allowed  bool
		blocking int
	}{
		{"exclusive resource", New(Buffer{}), 1, false, 2},
		{"capacity at peak", New(Buffer{}), 2, false, 2},
		{"capacity above peak", New(Buffer{}), 3, true, 0},
		{"exclusive policy ignores capacity", Exclusive(Buffer{}), 10, false, 2},
		{"zero value policy", ConflictPolicy{}, 3, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := tt.policy.Evaluate(candidate, existing, tt.capacity)
			require.Equal(t, tt.allowed, decision.Allowed)
			require.Len(t, decision.Blocking, tt.blocking)
		})
	}
}

func TestCustomPolicy(t *testing.T) {
	calls := 0
	p := Custom("always-deny", Buffer{}, func(window model.TimeRange, overlapping []*model.Reservation, capacity int) Decision {
		calls++
		return Deny("closed", overlapping)
	})

	require.True(t, p.Evaluate(span(hm(9, 0), hm(10, 0)), nil, 1).Allowed, "evaluator only runs when something overlaps")
	require.Zero(t, calls)

	decision := p.Evaluate(span(hm(9, 0), hm(10, 0)), []*model.Reservation{booked("a", hm(9, 0), hm(9, 30))}, 5)
	require.False(t, decision.Allowed)
	require.Equal(t, "closed", decision.Reason)
	require.Equal(t, 1, calls)
	require.Equal(t, "always-deny", p.Name())
}

func TestFromName(t *testing.T) {
	p, err := FromName("exclusive", Buffer{})
	require.NoError(t, err)
	require.Equal(t, 1, p.Capacity(20))

	p, err = FromName("", Buffer{})
	require.NoError(t, err)
	require.Equal(t, 20, p.Capacity(20))

	_, err = FromName("first-come", Buffer{})
	require.Error(t, err)
}
