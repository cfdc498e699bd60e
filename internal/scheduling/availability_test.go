package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type booking struct {
	doctorID string
	at       time.Time
	start    string
	status   Status
}

type fakeLookup struct {
	bookings []booking
	err      error
	calls    int
}

func (f *fakeLookup) ActiveStarts(_ context.Context, doctorID string, from, to time.Time) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []string
	for _, b := range f.bookings {
		if b.doctorID != doctorID || !b.status.IsActive() {
			continue
		}
		if b.at.Before(from) || b.at.After(to) {
			continue
		}
		out = append(out, b.start)
	}
	return out, nil
}

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("clinic", 2*3600)
	from, to := DayBounds(time.Date(2025, 6, 1, 15, 45, 0, 0, loc), loc)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, loc), from)
	assert.Equal(t, time.Date(2025, 6, 1, 23, 59, 59, int(999*time.Millisecond), loc), to)

	// 23:30 UTC on May 31 is already June 1 in the clinic's zone.
	from, _ = DayBounds(time.Date(2025, 5, 31, 23, 30, 0, 0, time.UTC), loc)
	assert.Equal(t, 1, from.Day())
}

func TestAvailableSlotsExcludesBookedStart(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	lookup := &fakeLookup{bookings: []booking{
		{doctorID: "D", at: day.Add(10 * time.Hour), start: "10:00", status: StatusScheduled},
	}}
	r := NewResolver(lookup, DefaultSlotPolicy(), time.UTC)

	slots, err := r.AvailableSlots(context.Background(), "D", day)
	require.NoError(t, err)

	all, _ := GenerateTimeSlots(9, 17, 30)
	require.Len(t, slots, len(all)-1)
	assert.NotContains(t, slots, Slot{Start: "10:00", End: "10:30"})
	for _, s := range all {
		if s.Start != "10:00" {
			assert.Contains(t, slots, s)
		}
	}
}

func TestAvailableSlotsIgnoresInactiveOtherDoctorsAndOtherDays(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	lookup := &fakeLookup{bookings: []booking{
		{doctorID: "D", at: day.Add(9 * time.Hour), start: "09:00", status: StatusCancelled},
		{doctorID: "D", at: day.Add(11 * time.Hour), start: "11:00", status: StatusCompleted},
		{doctorID: "D", at: day.Add(12 * time.Hour), start: "12:00", status: StatusInProgress},
		{doctorID: "D", at: day.Add(13 * time.Hour), start: "13:00", status: StatusNoShow},
		{doctorID: "E", at: day.Add(14 * time.Hour), start: "14:00", status: StatusScheduled},
		{doctorID: "D", at: day.Add(24*time.Hour + 15*time.Hour), start: "15:00", status: StatusConfirmed},
	}}
	r := NewResolver(lookup, DefaultSlotPolicy(), time.UTC)

	slots, err := r.AvailableSlots(context.Background(), "D", day.Add(17*time.Hour))
	require.NoError(t, err)
	all, _ := GenerateTimeSlots(9, 17, 30)
	assert.Equal(t, all, slots)
}

func TestHasConflict(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	lookup := &fakeLookup{bookings: []booking{
		{doctorID: "D", at: day.Add(10 * time.Hour), start: "10:00", status: StatusConfirmed},
	}}
	r := NewResolver(lookup, DefaultSlotPolicy(), time.UTC)
	ctx := context.Background()

	busy, err := r.HasConflict(ctx, "D", day, "10:00")
	require.NoError(t, err)
	assert.True(t, busy)

	busy, err = r.HasConflict(ctx, "D", day, "10:30")
	require.NoError(t, err)
	assert.False(t, busy)

	lookup.bookings[0].status = StatusCancelled
	busy, err = r.HasConflict(ctx, "D", day, "10:00")
	require.NoError(t, err)
	assert.False(t, busy, "a cancelled booking must free the slot")
}

func TestResolverPropagatesLookupError(t *testing.T) {
	boom := errors.New("store down")
	r := NewResolver(&fakeLookup{err: boom}, DefaultSlotPolicy(), nil)
	_, err := r.AvailableSlots(context.Background(), "D", time.Now())
	assert.ErrorIs(t, err, boom)
	_, err = r.HasConflict(context.Background(), "D", time.Now(), "09:00")
	assert.ErrorIs(t, err, boom)
}

func TestFilterAvailablePreservesOrder(t *testing.T) {
	c := []Slot{{"09:00", "09:30"}, {"09:30", "10:00"}, {"10:00", "10:30"}}
	assert.Equal(t, []Slot{{"09:00", "09:30"}, {"10:00", "10:30"}}, FilterAvailable(c, []string{"09:30", "18:00"}))
	assert.Equal(t, c, FilterAvailable(c, nil))
}

func TestActiveSlotKey(t *testing.T) {
	day := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "D|2025-06-01|10:00", ActiveSlotKey("D", day, "10:00"))
}
