// Package scheduling holds the appointment booking rules: clock arithmetic,
// slot generation, availability, the appointment lifecycle and the
// cancellation window. Everything here is pure except the availability
// resolver, which reads booked slots through an AppointmentLookup.
package scheduling

import (
	"fmt"
	"regexp"
	"strconv"
)

const (
	// MinutesPerDay bounds minute offsets: valid values are 0..MinutesPerDay-1.
	MinutesPerDay = 24 * 60
	lastMinute    = MinutesPerDay - 1
)

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Clock is a wall-clock time of day at minute resolution.
type Clock struct {
	Hour   int
	Minute int
}

// ParseTime parses a zero-padded 24-hour "HH:MM" string.
func ParseTime(s string) (Clock, error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return Clock{}, &FormatError{Value: s}
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	return Clock{Hour: h, Minute: min}, nil
}

// Minutes returns the offset from midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// TimeToMinutes converts "HH:MM" to minutes since midnight.
func TimeToMinutes(s string) (int, error) {
	c, err := ParseTime(s)
	if err != nil {
		return 0, err
	}
	return c.Minutes(), nil
}

// MinutesToTime is the inverse of TimeToMinutes.
func MinutesToTime(m int) (string, error) {
	if m < 0 || m > lastMinute {
		return "", &RangeError{Name: "minutes", Value: m, Min: 0, Max: lastMinute}
	}
	return Clock{Hour: m / 60, Minute: m % 60}.String(), nil
}

// IsTimeSlotValid reports whether end is strictly later than start.
// Unparseable input is never valid.
func IsTimeSlotValid(start, end string) bool {
	s, err := TimeToMinutes(start)
	if err != nil {
		return false
	}
	e, err := TimeToMinutes(end)
	if err != nil {
		return false
	}
	return e > s
}
