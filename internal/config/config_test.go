package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{
		"PORT", "APP_ENV", "NODE_ENV", "WORKING_HOURS_START", "WORKING_HOURS_END",
		"SLOT_DURATION_MINUTES", "SLOT_BREAKS", "CANCELLATION_NOTICE_HOURS",
		"RATE_LIMIT_MAX_REQUESTS", "RATE_LIMIT_WINDOW_SECONDS", "TIMEZONE", "DB_NAME",
	} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "5000", cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 9, cfg.Scheduling.Slots.StartHour)
	assert.Equal(t, 17, cfg.Scheduling.Slots.EndHour)
	assert.Equal(t, 30, cfg.Scheduling.Slots.SlotMinutes)
	assert.Empty(t, cfg.Scheduling.Slots.Breaks)
	assert.Equal(t, 24*time.Hour, cfg.Scheduling.Cancellation.Notice)
	assert.Equal(t, 100, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Contains(t, cfg.Database.DSN, "/hospital?")
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("APP_ENV", "production")
	t.Setenv("WORKING_HOURS_START", "8")
	t.Setenv("WORKING_HOURS_END", "16")
	t.Setenv("SLOT_DURATION_MINUTES", "20")
	t.Setenv("SLOT_BREAKS", "12:00-13:00")
	t.Setenv("CANCELLATION_NOTICE_HOURS", "12")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 8, cfg.Scheduling.Slots.StartHour)
	assert.Equal(t, 20, cfg.Scheduling.Slots.SlotMinutes)
	require.Len(t, cfg.Scheduling.Slots.Breaks, 1)
	assert.Equal(t, 12*60, cfg.Scheduling.Slots.Breaks[0].Start)
	assert.Equal(t, 12*time.Hour, cfg.Scheduling.Cancellation.Notice)
	assert.Equal(t, time.UTC, cfg.Scheduling.Location)
	assert.True(t, cfg.Storage.UseSSL)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"JWT_EXPIRATION_MINUTES":    "soon",
		"WORKING_HOURS_END":         "8",
		"SLOT_DURATION_MINUTES":     "0",
		"SLOT_BREAKS":               "lunch",
		"TIMEZONE":                  "Mars/Olympus",
		"MINIO_USE_SSL":             "maybe",
		"CANCELLATION_NOTICE_HOURS": "-3",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestCancellationNoticeMayBeZero(t *testing.T) {
	t.Setenv("CANCELLATION_NOTICE_HOURS", "0")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Zero(t, cfg.Scheduling.Cancellation.Notice)
}
