package scheduling

import (
	"fmt"
	"time"
)

// DefaultCancellationNotice is the minimum notice required to cancel.
const DefaultCancellationNotice = 24 * time.Hour

// CancellationPolicy decides whether an appointment may still be cancelled.
type CancellationPolicy struct {
	Notice time.Duration
}

// DefaultCancellationPolicy requires strictly more than 24 hours notice.
func DefaultCancellationPolicy() CancellationPolicy {
	return CancellationPolicy{Notice: DefaultCancellationNotice}
}

// CanBeCancelled is true when the appointment is active and starts more than
// Notice after now. Exactly Notice away is too late.
func (p CancellationPolicy) CanBeCancelled(status Status, appointmentAt, now time.Time) bool {
	return appointmentAt.Sub(now) > p.Notice && status.IsActive()
}

// Reason is the message returned to callers when cancellation is refused.
func (p CancellationPolicy) Reason() string {
	return fmt.Sprintf("appointment cannot be cancelled (less than %d hours notice or already completed)", int(p.Notice.Hours()))
}

// CanBeCancelled applies the default 24 hour policy.
func CanBeCancelled(status Status, appointmentAt, now time.Time) bool {
	return DefaultCancellationPolicy().CanBeCancelled(status, appointmentAt, now)
}
