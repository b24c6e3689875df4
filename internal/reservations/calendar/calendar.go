package calendar

import (
	"slices"
	"sort"
	"time"

	"calendra/pkg/model"
)

// Calendar is the ordered set of active reservations on one resource.
// It is not safe for concurrent use; callers hold the resource lock.
type Calendar struct {
	resourceID string
	entries    []*model.Reservation
	index      map[string]*model.Reservation

	// longest range ever inserted, used to bound the backwards scan in Overlapping
	maxDuration time.Duration
}

func New(resourceID string, reservations ...*model.Reservation) *Calendar {
	c := &Calendar{
		resourceID: resourceID,
		index:      make(map[string]*model.Reservation, len(reservations)),
	}
	for _, r := range reservations {
		if r.Status.Active() {
			c.Insert(r)
		}
	}
	return c
}

func (c *Calendar) ResourceID() string {
	return c.resourceID
}

func (c *Calendar) Len() int {
	return len(c.entries)
}

func (c *Calendar) Get(id string) (*model.Reservation, bool) {
	r, ok := c.index[id]
	return r, ok
}

// Entries returns the active reservations ordered by start time.
func (c *Calendar) Entries() []*model.Reservation {
	return slices.Clone(c.entries)
}

// Insert adds r, replacing any entry with the same id.
func (c *Calendar) Insert(r *model.Reservation) {
	if _, ok := c.index[r.ID]; ok {
		c.Remove(r.ID)
	}

	i := sort.Search(len(c.entries), func(i int) bool { return less(r, c.entries[i]) })
	c.entries = slices.Insert(c.entries, i, r)
	c.index[r.ID] = r

	if d := r.Range.Duration(); d > c.maxDuration {
		c.maxDuration = d
	}
}

// Remove deletes the entry with the given id. Removing an unknown id is a no-op.
func (c *Calendar) Remove(id string) bool {
	r, ok := c.index[id]
	if !ok {
		return false
	}
	delete(c.index, id)

	i := sort.Search(len(c.entries), func(i int) bool { return !less(c.entries[i], r) })
	if i < len(c.entries) && c.entries[i] == r {
		c.entries = slices.Delete(c.entries, i, i+1)
		return true
	}

	// the entry's range was mutated in place after insertion
	c.entries = slices.DeleteFunc(c.entries, func(e *model.Reservation) bool { return e == r })
	return true
}

// Overlapping returns every active entry sharing an instant with window.
func (c *Calendar) Overlapping(window model.TimeRange) []*model.Reservation {
	hi := sort.Search(len(c.entries), func(i int) bool {
		return !c.entries[i].Range.Start.Before(window.End)
	})

	floor := window.Start.Add(-c.maxDuration)
	lo := sort.Search(hi, func(i int) bool {
		return c.entries[i].Range.Start.After(floor)
	})

	var out []*model.Reservation
	for _, r := range c.entries[lo:hi] {
		if r.Range.Overlaps(window) {
			out = append(out, r)
		}
	}
	return out
}

// FindConflicts returns the entries blocking candidate at the given capacity.
// With capacity 1 that is every overlapping entry. With a larger capacity the
// overlapping entries are returned only when adding candidate would exceed it.
func (c *Calendar) FindConflicts(candidate model.TimeRange, capacity int) []*model.Reservation {
	overlapping := c.Overlapping(candidate)
	if capacity <= 1 || len(overlapping) == 0 {
		return overlapping
	}
	if MaxConcurrent(candidate, Ranges(overlapping)) < capacity {
		return nil
	}
	return overlapping
}

func less(a, b *model.Reservation) bool {
	if !a.Range.Start.Equal(b.Range.Start) {
		return a.Range.Start.Before(b.Range.Start)
	}
	return a.ID < b.ID
}

func Ranges(reservations []*model.Reservation) []model.TimeRange {
	out := make([]model.TimeRange, len(reservations))
	for i, r := range reservations {
		out[i] = r.Range
	}
	return out
}
