package model

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidRange = errors.New("invalid time range")

// TimeRange is a half-open interval [Start, End) in UTC.
type TimeRange struct {
	Start time.Time `json:"start" bson:"start"`
	End   time.Time `json:"end" bson:"end"`
}

// NewTimeRange normalizes both bounds to UTC and rejects empty or inverted ranges.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	start, end = start.UTC(), end.UTC()
	if start.IsZero() || end.IsZero() {
		return TimeRange{}, fmt.Errorf("%w: start and end are required", ErrInvalidRange)
	}
	if !start.Before(end) {
		return TimeRange{}, fmt.Errorf("%w: start %s must be before end %s",
			ErrInvalidRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return TimeRange{Start: start, End: end}, nil
}

func (r TimeRange) Valid() bool {
	return !r.Start.IsZero() && r.Start.Before(r.End)
}

// Overlaps reports whether the ranges share at least one instant.
// Touching ranges ([a,b) and [b,c)) do not overlap.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Expand widens the range by before and after. Negative values are ignored.
func (r TimeRange) Expand(before, after time.Duration) TimeRange {
	if before < 0 {
		before = 0
	}
	if after < 0 {
		after = 0
	}
	return TimeRange{Start: r.Start.Add(-before), End: r.End.Add(after)}
}

// Intersect returns the overlapping part of both ranges.
func (r TimeRange) Intersect(other TimeRange) (TimeRange, bool) {
	if !r.Overlaps(other) {
		return TimeRange{}, false
	}
	out := r
	if other.Start.After(out.Start) {
		out.Start = other.Start
	}
	if other.End.Before(out.End) {
		out.End = other.End
	}
	return out, true
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}
