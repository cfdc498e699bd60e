package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanBeCancelled(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		status Status
		at     time.Time
		want   bool
	}{
		{"48h scheduled", StatusScheduled, now.Add(48 * time.Hour), true},
		{"48h confirmed", StatusConfirmed, now.Add(48 * time.Hour), true},
		{"just over 24h", StatusScheduled, now.Add(24*time.Hour + time.Minute), true},
		{"exactly 24h", StatusScheduled, now.Add(24 * time.Hour), false},
		{"23h", StatusScheduled, now.Add(23 * time.Hour), false},
		{"in the past", StatusScheduled, now.Add(-time.Hour), false},
		{"in-progress", StatusInProgress, now.Add(48 * time.Hour), false},
		{"completed", StatusCompleted, now.Add(48 * time.Hour), false},
		{"cancelled", StatusCancelled, now.Add(48 * time.Hour), false},
		{"no-show", StatusNoShow, now.Add(48 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanBeCancelled(tt.status, tt.at, now))
		})
	}
}

func TestCancellationPolicyCustomNotice(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	p := CancellationPolicy{Notice: 2 * time.Hour}
	assert.True(t, p.CanBeCancelled(StatusScheduled, now.Add(3*time.Hour), now))
	assert.False(t, p.CanBeCancelled(StatusScheduled, now.Add(2*time.Hour), now))
	assert.Contains(t, p.Reason(), "less than 2 hours notice")
}
