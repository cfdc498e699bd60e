package scheduling

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, s := range AllStatuses {
		got, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStatus("pending")
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "status", ve.Fields[0].Field)
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	for _, from := range []Status{StatusCompleted, StatusCancelled, StatusNoShow} {
		assert.True(t, from.IsTerminal())
		for _, to := range AllStatuses {
			assert.False(t, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestLifecycleTransitions(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	farAway := now.Add(72 * time.Hour)
	soon := now.Add(2 * time.Hour)
	lc := NewLifecycle(DefaultCancellationPolicy())

	tests := []struct {
		name    string
		from    Status
		to      Status
		at      time.Time
		allowed bool
	}{
		{"confirm", StatusScheduled, StatusConfirmed, farAway, true},
		{"start visit", StatusConfirmed, StatusInProgress, soon, true},
		{"complete from scheduled", StatusScheduled, StatusCompleted, soon, true},
		{"complete from confirmed", StatusConfirmed, StatusCompleted, soon, true},
		{"complete from in-progress", StatusInProgress, StatusCompleted, soon, true},
		{"no-show from scheduled", StatusScheduled, StatusNoShow, soon, true},
		{"no-show from confirmed", StatusConfirmed, StatusNoShow, soon, true},
		{"cancel early", StatusScheduled, StatusCancelled, farAway, true},
		{"cancel confirmed early", StatusConfirmed, StatusCancelled, farAway, true},
		{"cancel late", StatusScheduled, StatusCancelled, soon, false},
		{"cancel in-progress", StatusInProgress, StatusCancelled, farAway, false},
		{"skip to in-progress", StatusScheduled, StatusInProgress, soon, false},
		{"back to scheduled", StatusConfirmed, StatusScheduled, farAway, false},
		{"reopen completed", StatusCompleted, StatusScheduled, farAway, false},
		{"reopen cancelled", StatusCancelled, StatusConfirmed, farAway, false},
		{"same state", StatusScheduled, StatusScheduled, farAway, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := lc.Transition(tt.from, tt.to, tt.at, now)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			var pv *PolicyViolation
			assert.True(t, errors.As(err, &pv), "expected PolicyViolation, got %v", err)
		})
	}
}

func TestLateCancelReason(t *testing.T) {
	now := time.Now()
	err := NewLifecycle(DefaultCancellationPolicy()).Transition(StatusScheduled, StatusCancelled, now.Add(23*time.Hour), now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "less than 24 hours notice")
}
