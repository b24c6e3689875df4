package calendar

import (
	"slices"
	"testing"
	"time"

	"calendra/pkg/model"

	"github.com/stretchr/testify/require"
)

func TestMaxConcurrent(t *testing.T) {
	window := span(hm(8, 0), hm(18, 0))

	tests := []struct {
		name   string
		ranges []model.TimeRange
		want   int
	}{
		{"empty", nil, 0},
		{"back to back", []model.TimeRange{span(hm(9, 0), hm(10, 0)), span(hm(10, 0), hm(11, 0))}, 1},
		{"nested", []model.TimeRange{span(hm(9, 0), hm(12, 0)), span(hm(10, 0), hm(11, 0)), span(hm(10, 30), hm(10, 45))}, 3},
		{"outside window", []model.TimeRange{span(hm(6, 0), hm(8, 0)), span(hm(18, 0), hm(19, 0))}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, MaxConcurrent(window, tt.ranges))
		})
	}
}

func TestFreeIntervals(t *testing.T) {
	window := span(hm(8, 0), hm(18, 0))
	ranges := []model.TimeRange{
		span(hm(9, 0), hm(10, 0)),
		span(hm(10, 0), hm(11, 0)),
		span(hm(13, 0), hm(14, 0)),
		span(hm(13, 30), hm(15, 0)),
	}

	t.Run("exclusive", func(t *testing.T) {
		got := slices.Collect(FreeIntervals(window, ranges, 1))
		require.Equal(t, []model.TimeRange{
			span(hm(8, 0), hm(9, 0)),
			span(hm(11, 0), hm(13, 0)),
			span(hm(15, 0), hm(18, 0)),
		}, got)
	})

	t.Run("capacity two", func(t *testing.T) {
		got := slices.Collect(FreeIntervals(window, ranges, 2))
		require.Equal(t, []model.TimeRange{
			span(hm(8, 0), hm(13, 30)),
			span(hm(14, 0), hm(18, 0)),
		}, got)
	})

	t.Run("fully booked", func(t *testing.T) {
		got := slices.Collect(FreeIntervals(span(hm(9, 0), hm(11, 0)), ranges, 1))
		require.Empty(t, got)
	})

	t.Run("nothing booked", func(t *testing.T) {
		got := slices.Collect(FreeIntervals(window, nil, 1))
		require.Equal(t, []model.TimeRange{window}, got)
	})

	t.Run("stops early", func(t *testing.T) {
		var got []model.TimeRange
		for r := range FreeIntervals(window, ranges, 1) {
			got = append(got, r)
			break
		}
		require.Len(t, got, 1)
	})
}

func TestFreeIntervals_CoverWindowWithBookings(t *testing.T) {
	window := span(hm(8, 0), hm(18, 0))
	ranges := []model.TimeRange{span(hm(7, 0), hm(9, 0)), span(hm(12, 0), hm(20, 0))}

	var free time.Duration
	for r := range FreeIntervals(window, ranges, 1) {
		for _, b := range ranges {
			require.False(t, r.Overlaps(b), "free interval %s overlaps booking %s", r, b)
		}
		free += r.Duration()
	}
	require.Equal(t, 3*time.Hour, free)
}

func TestSlots(t *testing.T) {
	c := New("room-1",
		booked("a", hm(9, 0), hm(10, 0)),
		booked("b", hm(9, 30), hm(9, 45)),
	)

	slots := c.Slots(span(hm(8, 0), hm(11, 0)), time.Hour, 2)
	require.Len(t, slots, 3)

	require.True(t, slots[0].Available)
	require.Equal(t, 2, slots[0].Remaining)

	require.False(t, slots[1].Available)
	require.Equal(t, 0, slots[1].Remaining)

	require.True(t, slots[2].Available)

	require.Nil(t, Slots(span(hm(8, 0), hm(9, 0)), 0, nil, 1))
}

func TestSlots_TrailingPartialSlot(t *testing.T) {
	slots := Slots(span(hm(8, 0), hm(9, 30)), time.Hour, nil, 1)

	require.Len(t, slots, 2)
	require.Equal(t, span(hm(9, 0), hm(9, 30)), slots[1].Range)
}
