package scheduling

import (
	"context"
	"slices"
	"time"
)

// DateLayout is the calendar-day format used in keys and query parameters.
const DateLayout = "2006-01-02"

// AppointmentLookup is the read side of the appointment store needed here.
type AppointmentLookup interface {
	// ActiveStarts returns timeSlot.start of every scheduled or confirmed
	// appointment for the doctor whose date falls within [from, to].
	ActiveStarts(ctx context.Context, doctorID string, from, to time.Time) ([]string, error)
}

// DayBounds returns the first and last instant of t's calendar day in loc,
// 00:00:00.000 through 23:59:59.999, both inclusive.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1).Add(-time.Millisecond)
}

// ActiveSlotKey identifies the single active booking allowed per doctor, day and start.
func ActiveSlotKey(doctorID string, day time.Time, start string) string {
	return doctorID + "|" + day.Format(DateLayout) + "|" + start
}

// Resolver answers availability and conflict questions for a doctor's day.
type Resolver struct {
	lookup   AppointmentLookup
	policy   SlotPolicy
	location *time.Location
}

// NewResolver builds a Resolver over lookup. A nil location means time.Local.
func NewResolver(lookup AppointmentLookup, policy SlotPolicy, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{lookup: lookup, policy: policy, location: loc}
}

// Location is the calendar used for day matching.
func (r *Resolver) Location() *time.Location {
	return r.location
}

// Policy returns the slot policy used to generate candidates.
func (r *Resolver) Policy() SlotPolicy {
	return r.policy
}

// HasConflict reports whether an active appointment already starts at start
// on date's calendar day for the doctor.
func (r *Resolver) HasConflict(ctx context.Context, doctorID string, date time.Time, start string) (bool, error) {
	booked, err := r.bookedStarts(ctx, doctorID, date)
	if err != nil {
		return false, err
	}
	return slices.Contains(booked, start), nil
}

// AvailableSlots returns the generated slots for the day minus those already booked.
func (r *Resolver) AvailableSlots(ctx context.Context, doctorID string, date time.Time) ([]Slot, error) {
	candidates, err := r.policy.Slots()
	if err != nil {
		return nil, err
	}
	booked, err := r.bookedStarts(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	return FilterAvailable(candidates, booked), nil
}

func (r *Resolver) bookedStarts(ctx context.Context, doctorID string, date time.Time) ([]string, error) {
	from, to := DayBounds(date, r.location)
	return r.lookup.ActiveStarts(ctx, doctorID, from, to)
}

// FilterAvailable drops candidates whose start is booked, keeping order.
func FilterAvailable(candidates []Slot, bookedStarts []string) []Slot {
	booked := make(map[string]struct{}, len(bookedStarts))
	for _, s := range bookedStarts {
		booked[s] = struct{}{}
	}
	out := make([]Slot, 0, len(candidates))
	for _, c := range candidates {
		if _, taken := booked[c.Start]; !taken {
			out = append(out, c)
		}
	}
	return out
}
