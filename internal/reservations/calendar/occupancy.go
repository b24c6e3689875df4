package calendar

import (
	"iter"
	"sort"
	"time"

	"calendra/pkg/model"
)

type edge struct {
	at    time.Time
	delta int
}

// edges clips ranges to window and orders the boundaries. Ends sort before
// starts at the same instant since ranges are half-open.
func edges(window model.TimeRange, ranges []model.TimeRange) []edge {
	out := make([]edge, 0, 2*len(ranges))
	for _, r := range ranges {
		clip, ok := r.Intersect(window)
		if !ok {
			continue
		}
		out = append(out, edge{at: clip.Start, delta: 1}, edge{at: clip.End, delta: -1})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].at.Equal(out[j].at) {
			return out[i].at.Before(out[j].at)
		}
		return out[i].delta < out[j].delta
	})
	return out
}

// MaxConcurrent is the peak number of ranges active at any instant inside window.
func MaxConcurrent(window model.TimeRange, ranges []model.TimeRange) int {
	current, peak := 0, 0
	for _, e := range edges(window, ranges) {
		current += e.delta
		if current > peak {
			peak = current
		}
	}
	return peak
}

// FreeIntervals yields the maximal sub-intervals of window where fewer than
// capacity ranges are active, in ascending order.
func FreeIntervals(window model.TimeRange, ranges []model.TimeRange, capacity int) iter.Seq[model.TimeRange] {
	if capacity < 1 {
		capacity = 1
	}
	es := edges(window, ranges)

	return func(yield func(model.TimeRange) bool) {
		if !window.Valid() {
			return
		}

		var (
			cursor    = window.Start
			count     int
			openStart time.Time
			open      bool
			i         int
		)

		for cursor.Before(window.End) {
			next := window.End
			if i < len(es) && es[i].at.Before(next) {
				next = es[i].at
			}

			if next.After(cursor) {
				switch {
				case count < capacity && !open:
					openStart, open = cursor, true
				case count >= capacity && open:
					if !yield(model.TimeRange{Start: openStart, End: cursor}) {
						return
					}
					open = false
				}
			}

			for i < len(es) && es[i].at.Equal(next) {
				count += es[i].delta
				i++
			}
			cursor = next
		}

		if open {
			yield(model.TimeRange{Start: openStart, End: window.End})
		}
	}
}

// Slots cuts window into step-sized slots and reports the remaining capacity of each.
func Slots(window model.TimeRange, step time.Duration, ranges []model.TimeRange, capacity int) []model.Slot {
	if step <= 0 || !window.Valid() {
		return nil
	}
	if capacity < 1 {
		capacity = 1
	}

	var out []model.Slot
	for start := window.Start; start.Before(window.End); start = start.Add(step) {
		end := start.Add(step)
		if end.After(window.End) {
			end = window.End
		}
		slot := model.TimeRange{Start: start, End: end}
		peak := MaxConcurrent(slot, ranges)
		out = append(out, model.Slot{
			Range:     slot,
			Available: peak < capacity,
			Remaining: max(capacity-peak, 0),
		})
	}
	return out
}

// Free snapshots the entries overlapping window so the returned sequence stays
// valid after the caller releases the resource lock.
func (c *Calendar) Free(window model.TimeRange, capacity int) iter.Seq[model.TimeRange] {
	return FreeIntervals(window, Ranges(c.Overlapping(window)), capacity)
}

func (c *Calendar) Slots(window model.TimeRange, step time.Duration, capacity int) []model.Slot {
	return Slots(window, step, Ranges(c.Overlapping(window)), capacity)
}
