package scheduling

import (
	"fmt"
	"strings"
)

// Slot is a bookable interval expressed as "HH:MM" strings.
type Slot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Window is a half-open [Start, End) range of minute offsets.
type Window struct {
	Start int
	End   int
}

func (w Window) overlaps(start, end int) bool {
	return start < w.End && w.Start < end
}

func (w Window) String() string {
	s, _ := MinutesToTime(w.Start)
	e, _ := MinutesToTime(w.End)
	return s + "-" + e
}

// GenerateTimeSlots returns consecutive slots of slotMinutes length starting at
// startHour:00. Generation stops once the next start would reach endHour:00.
func GenerateTimeSlots(startHour, endHour, slotMinutes int) ([]Slot, error) {
	if startHour < 0 || startHour > 23 {
		return nil, &RangeError{Name: "startHour", Value: startHour, Min: 0, Max: 23}
	}
	if endHour < 0 || endHour > 23 {
		return nil, &RangeError{Name: "endHour", Value: endHour, Min: 0, Max: 23}
	}
	if slotMinutes < 1 || slotMinutes > lastMinute {
		return nil, &RangeError{Name: "slotMinutes", Value: slotMinutes, Min: 1, Max: lastMinute}
	}
	return generate(startHour*60, endHour*60, slotMinutes), nil
}

func generate(from, to, step int) []Slot {
	slots := make([]Slot, 0, max(0, (to-from)/step+1))
	for start := from; start < to; start += step {
		end := start + step
		if end > lastMinute {
			// "24:00" and later cannot be expressed as HH:MM.
			break
		}
		s, _ := MinutesToTime(start)
		e, _ := MinutesToTime(end)
		slots = append(slots, Slot{Start: s, End: e})
	}
	return slots
}

// SlotPolicy is the clinic-wide working day used to build candidate slots.
// Breaks remove any generated slot that overlaps them, which is how a lunch
// gap is expressed without splitting the working day into separate ranges.
type SlotPolicy struct {
	StartHour   int
	EndHour     int
	SlotMinutes int
	Breaks      []Window
}

// DefaultSlotPolicy is 09:00-17:00 in 30 minute slots with no breaks.
func DefaultSlotPolicy() SlotPolicy {
	return SlotPolicy{StartHour: 9, EndHour: 17, SlotMinutes: 30}
}

// Validate checks the policy can produce slots.
func (p SlotPolicy) Validate() error {
	if _, err := GenerateTimeSlots(p.StartHour, p.EndHour, p.SlotMinutes); err != nil {
		return err
	}
	if p.EndHour <= p.StartHour {
		return fmt.Errorf("working hours end (%d) must be after start (%d)", p.EndHour, p.StartHour)
	}
	return nil
}

// Slots generates the ordered candidate slots for one working day.
func (p SlotPolicy) Slots() ([]Slot, error) {
	all, err := GenerateTimeSlots(p.StartHour, p.EndHour, p.SlotMinutes)
	if err != nil {
		return nil, err
	}
	if len(p.Breaks) == 0 {
		return all, nil
	}
	out := all[:0]
	for _, s := range all {
		start, _ := TimeToMinutes(s.Start)
		end, _ := TimeToMinutes(s.End)
		blocked := false
		for _, b := range p.Breaks {
			if b.overlaps(start, end) {
				blocked = true
				break
			}
		}
		if !blocked {
			out = append(out, s)
		}
	}
	return out, nil
}

// ParseBreaks parses a comma separated list of "HH:MM-HH:MM" ranges.
// An empty string yields no breaks.
func ParseBreaks(s string) ([]Window, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []Window
	for _, part := range strings.Split(s, ",") {
		bounds := strings.SplitN(strings.TrimSpace(part), "-", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("break %q: expected HH:MM-HH:MM", part)
		}
		start, err := TimeToMinutes(strings.TrimSpace(bounds[0]))
		if err != nil {
			return nil, fmt.Errorf("break %q: %w", part, err)
		}
		end, err := TimeToMinutes(strings.TrimSpace(bounds[1]))
		if err != nil {
			return nil, fmt.Errorf("break %q: %w", part, err)
		}
		if end <= start {
			return nil, fmt.Errorf("break %q: end must be after start", part)
		}
		out = append(out, Window{Start: start, End: end})
	}
	return out, nil
}
