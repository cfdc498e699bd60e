package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hospital-app-server/internal/scheduling"
)

func TestAppointmentActiveSlotFor(t *testing.T) {
	loc := time.FixedZone("clinic", 3*3600)
	a := Appointment{
		DoctorID:        "doc-1",
		AppointmentDate: time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC), // 10:00 local
		TimeSlot:        TimeSlot{Start: "10:00", End: "10:30"},
	}

	key := a.ActiveSlotFor(scheduling.StatusScheduled, loc)
	require.NotNil(t, key)
	assert.Equal(t, "doc-1|2025-06-01|10:00", *key)
	assert.NotNil(t, a.ActiveSlotFor(scheduling.StatusConfirmed, loc))

	for _, s := range []scheduling.Status{
		scheduling.StatusInProgress, scheduling.StatusCompleted,
		scheduling.StatusCancelled, scheduling.StatusNoShow,
	} {
		assert.Nil(t, a.ActiveSlotFor(s, loc), s)
	}
}

func TestAppointmentDuration(t *testing.T) {
	a := Appointment{TimeSlot: TimeSlot{Start: "09:00", End: "09:45"}}
	assert.Equal(t, 45, a.DurationMinutes())
	a.TimeSlot.End = "bad"
	assert.Equal(t, 0, a.DurationMinutes())
}

func TestAppointmentParticipants(t *testing.T) {
	a := Appointment{PatientID: "p", DoctorID: "d"}
	assert.True(t, a.IsParticipant("p"))
	assert.True(t, a.IsParticipant("d"))
	assert.False(t, a.IsParticipant("x"))
	assert.False(t, a.IsParticipant(""))
}

func TestUserPassword(t *testing.T) {
	var u User
	require.NoError(t, u.SetPassword("s3cret-pass"))
	assert.NotEqual(t, "s3cret-pass", u.Password)
	assert.True(t, u.CheckPassword("s3cret-pass"))
	assert.False(t, u.CheckPassword("wrong"))
}

func TestCanMessage(t *testing.T) {
	assert.True(t, CanMessage(RolePatient, RoleDoctor))
	assert.True(t, CanMessage(RoleDoctor, RolePatient))
	assert.True(t, CanMessage(RoleAdmin, RolePatient))
	assert.True(t, CanMessage(RoleDoctor, RoleAdmin))
	assert.False(t, CanMessage(RolePatient, RolePatient))
	assert.False(t, CanMessage(RoleDoctor, RoleDoctor))
}

func TestVitalSignsBMI(t *testing.T) {
	assert.InDelta(t, 22.86, VitalSigns{Weight: 70, Height: 175}.BMI(), 0.01)
	assert.Zero(t, VitalSigns{Weight: 70}.BMI())
}

func TestRefreshTokenUsable(t *testing.T) {
	now := time.Now()
	assert.True(t, (&RefreshToken{ExpiresAt: now.Add(time.Hour)}).Usable(now))
	assert.False(t, (&RefreshToken{ExpiresAt: now.Add(-time.Hour)}).Usable(now))
	assert.False(t, (&RefreshToken{ExpiresAt: now.Add(time.Hour), IsRevoked: true}).Usable(now))
}
