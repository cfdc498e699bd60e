package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"hospital-app-server/internal/models"
	"hospital-app-server/internal/scheduling"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), models.GormConfig(false))
	require.NoError(t, err)
	return db, mock
}

func sampleAppointment() *models.Appointment {
	return &models.Appointment{
		BaseModel:       models.BaseModel{ID: "appt-1"},
		PatientID:       "patient-1",
		DoctorID:        "doctor-1",
		AppointmentDate: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		TimeSlot:        models.TimeSlot{Start: "10:00", End: "10:30"},
		Reason:          "Checkup",
		Status:          scheduling.StatusScheduled,
	}
}

func TestActiveStarts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db, time.UTC)
	from, to := scheduling.DayBounds(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT `slot_start` FROM `appointments` WHERE")).
		WithArgs("doctor-1", from, to, scheduling.StatusScheduled, scheduling.StatusConfirmed).
		WillReturnRows(sqlmock.NewRows([]string{"slot_start"}).AddRow("10:00").AddRow("14:30"))

	starts, err := repo.ActiveStarts(context.Background(), "doctor-1", from, to)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "14:30"}, starts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSetsActiveSlot(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db, time.UTC)
	a := sampleAppointment()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `appointments`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), a))
	require.NotNil(t, a.ActiveSlot)
	assert.Equal(t, "doctor-1|2025-06-01|10:00", *a.ActiveSlot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDuplicateSlotIsConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `appointments`")).
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry for key 'idx_active_slot'"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), sampleAppointment())
	var conflict *scheduling.ConflictError
	require.True(t, errors.As(err, &conflict), "got %v", err)
	assert.Equal(t, "doctor-1", conflict.DoctorID)
	assert.Equal(t, "2025-06-01", conflict.Date)
	assert.Equal(t, "10:00", conflict.Start)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWrapsOtherErrors(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `appointments`")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), sampleAppointment())
	require.Error(t, err)
	var conflict *scheduling.ConflictError
	assert.False(t, errors.As(err, &conflict))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestFindByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `appointments` WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByID(context.Background(), "missing")
	var nf *scheduling.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "appointment", nf.Entity)
}

func TestUpdateStatusClearsActiveSlot(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db, time.UTC)
	a := sampleAppointment()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `appointments` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.UpdateStatus(context.Background(), a, scheduling.StatusCancelled))
	assert.Equal(t, scheduling.StatusCancelled, a.Status)
	assert.Nil(t, a.ActiveSlot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusLostRace(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db, time.UTC)
	a := sampleAppointment()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `appointments` SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), a, scheduling.StatusConfirmed)
	var pv *scheduling.PolicyViolation
	require.True(t, errors.As(err, &pv))
	assert.Equal(t, ErrConcurrentUpdate.Error(), pv.Reason)
	assert.Equal(t, scheduling.StatusScheduled, a.Status)
}

func TestUpdateDetailsIgnoresSchedulingColumns(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db, time.UTC)

	require.NoError(t, repo.UpdateDetails(context.Background(), sampleAppointment(), map[string]any{
		"status":     "completed",
		"slot_start": "11:00",
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDetailsEncodesPrescription(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `appointments` SET `notes`=?,`prescription`=?,`updated_at`=? WHERE `id` = ?")).
		WithArgs(
			"take with food",
			`[{"medication":"Ibuprofen","dosage":"200mg","frequency":"2x daily","duration":"5 days"}]`,
			sqlmock.AnyArg(),
			"appt-1",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateDetails(context.Background(), sampleAppointment(), map[string]any{
		"notes": "take with food",
		"prescription": []models.PrescriptionEntry{
			{Medication: "Ibuprofen", Dosage: "200mg", Frequency: "2x daily", Duration: "5 days"},
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPaginates(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `appointments` WHERE patient_id = ?")).
		WithArgs("patient-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `appointments` WHERE patient_id = ? ORDER BY appointment_date asc LIMIT ? OFFSET ?")).
		WithArgs("patient-1", 5, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_id", "doctor_id", "slot_start", "slot_end", "status"}))

	out, total, err := repo.List(context.Background(), AppointmentFilter{PatientID: "patient-1", Page: 2, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.EqualValues(t, 12, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStats(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, count(*) as count FROM `appointments` WHERE doctor_id = ? GROUP BY `status`")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("scheduled", 3).
			AddRow("cancelled", 2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `appointments`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `appointments`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	stats, err := repo.Stats(context.Background(), AppointmentFilter{DoctorID: "doctor-1"}, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.EqualValues(t, 5, stats.Total)
	assert.EqualValues(t, 1, stats.Today)
	assert.EqualValues(t, 3, stats.Upcoming)
	assert.EqualValues(t, 3, stats.ByStatus[scheduling.StatusScheduled])
	assert.EqualValues(t, 0, stats.ByStatus[scheduling.StatusCompleted])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserFindByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `users` WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "role", "is_active"}).
			AddRow("doctor-1", "doc@example.com", "doctor", true))
	u, err := repo.FindByID(context.Background(), "doctor-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleDoctor, u.Role)
	assert.True(t, u.IsActive)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `users` WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = repo.FindByID(context.Background(), "nobody")
	var nf *scheduling.NotFoundError
	assert.True(t, errors.As(err, &nf))
}
