package scheduling

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no-show"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusScheduled,
	StatusConfirmed,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
	StatusNoShow,
}

// ActiveStatuses are the statuses that occupy a slot.
var ActiveStatuses = []Status{StatusScheduled, StatusConfirmed}

var transitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted},
}

// ParseStatus accepts only the known lifecycle states.
func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", NewValidationError("status", fmt.Sprintf("unknown status %q", s))
}

// IsActive reports whether the status holds its slot.
func (s Status) IsActive() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// IsTerminal reports whether no further transition is permitted.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// CanTransitionTo checks the transition table only; it ignores the cancellation window.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Lifecycle applies the transition table together with the cancellation policy.
type Lifecycle struct {
	Cancellation CancellationPolicy
}

// NewLifecycle returns a Lifecycle using the given cancellation policy.
func NewLifecycle(p CancellationPolicy) Lifecycle {
	return Lifecycle{Cancellation: p}
}

// Transition validates moving an appointment at appointmentAt from one status to another.
func (l Lifecycle) Transition(from, to Status, appointmentAt, now time.Time) error {
	if from.IsTerminal() {
		return &PolicyViolation{Reason: fmt.Sprintf("appointment is already %s", from)}
	}
	if !from.CanTransitionTo(to) {
		return &PolicyViolation{Reason: fmt.Sprintf("cannot change status from %s to %s", from, to)}
	}
	if to == StatusCancelled && !l.Cancellation.CanBeCancelled(from, appointmentAt, now) {
		return &PolicyViolation{Reason: l.Cancellation.Reason()}
	}
	return nil
}
