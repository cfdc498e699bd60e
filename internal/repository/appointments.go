package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"hospital-app-server/internal/models"
	"hospital-app-server/internal/scheduling"
)

// ErrConcurrentUpdate is wrapped into the PolicyViolation returned when a
// status compare-and-swap finds the row already changed.
var ErrConcurrentUpdate = errors.New("appointment was modified concurrently")

// AppointmentFilter narrows List and Stats. Zero values mean no filter.
type AppointmentFilter struct {
	PatientID string
	DoctorID  string
	Status    scheduling.Status
	From      time.Time
	To        time.Time
	Page      int
	Limit     int
}

// AppointmentStats is the count summary shown on dashboards.
type AppointmentStats struct {
	Total    int64                       `json:"total"`
	Today    int64                       `json:"today"`
	Upcoming int64                       `json:"upcoming"`
	ByStatus map[scheduling.Status]int64 `json:"byStatus"`
}

// AppointmentRepository is the gorm-backed appointment store.
type AppointmentRepository struct {
	db  *gorm.DB
	loc *time.Location
}

// NewAppointmentRepository builds the store. loc is the clinic calendar used
// for active slot keys and must match the availability resolver's.
func NewAppointmentRepository(db *gorm.DB, loc *time.Location) *AppointmentRepository {
	if loc == nil {
		loc = time.Local
	}
	return &AppointmentRepository{db: db, loc: loc}
}

// ActiveStarts implements scheduling.AppointmentLookup.
func (r *AppointmentRepository) ActiveStarts(ctx context.Context, doctorID string, from, to time.Time) ([]string, error) {
	var starts []string
	err := r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("doctor_id = ? AND appointment_date BETWEEN ? AND ? AND status IN ?",
			doctorID, from, to, scheduling.ActiveStatuses).
		Pluck("slot_start", &starts).Error
	if err != nil {
		return nil, fmt.Errorf("query booked slots: %w", err)
	}
	return starts, nil
}

// Create inserts a in one statement. The unique active_slot index rejects a
// second active booking for the same doctor, day and start.
func (r *AppointmentRepository) Create(ctx context.Context, a *models.Appointment) error {
	if a.Status == "" {
		a.Status = scheduling.StatusScheduled
	}
	a.ActiveSlot = a.ActiveSlotFor(a.Status, r.loc)

	if err := r.db.WithContext(ctx).Omit("Patient", "Doctor").Create(a).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return r.conflict(a)
		}
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

// FindByID loads an appointment with its patient and doctor.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	var a models.Appointment
	err := r.db.WithContext(ctx).Preload("Patient").Preload("Doctor").First(&a, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &scheduling.NotFoundError{Entity: "appointment", ID: id}
		}
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	return &a, nil
}

// UpdateStatus moves a from its current status to `to`, provided nobody
// changed the row since a was read.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, a *models.Appointment, to scheduling.Status) error {
	result := r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ? AND status = ?", a.ID, a.Status).
		Updates(map[string]any{
			"status":      to,
			"active_slot": a.ActiveSlotFor(to, r.loc),
		})
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return r.conflict(a)
		}
		return fmt.Errorf("update appointment status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &scheduling.PolicyViolation{Reason: ErrConcurrentUpdate.Error()}
	}
	a.Status = to
	a.ActiveSlot = a.ActiveSlotFor(to, r.loc)
	return nil
}

// UpdateDetails writes non-scheduling columns. Status and slot columns are
// never touched here.
func (r *AppointmentRepository) UpdateDetails(ctx context.Context, a *models.Appointment, fields map[string]any) error {
	for _, col := range []string{"status", "active_slot", "appointment_date", "slot_start", "slot_end", "doctor_id", "patient_id"} {
		delete(fields, col)
	}
	if len(fields) == 0 {
		return nil
	}
	// Map updates bypass the json serializer on the model, so encode here.
	if v, ok := fields["prescription"]; ok {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode prescription: %w", err)
		}
		fields["prescription"] = string(raw)
	}
	if err := r.db.WithContext(ctx).Model(a).Omit("Patient", "Doctor").Updates(fields).Error; err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	return nil
}

// List returns one page of appointments ordered by date, plus the total count.
func (r *AppointmentRepository) List(ctx context.Context, f AppointmentFilter) ([]models.Appointment, int64, error) {
	var total int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	page, limit := normalizePage(f.Page, f.Limit)
	var out []models.Appointment
	err := r.filtered(ctx, f).Preload("Patient").Preload("Doctor").
		Order("appointment_date asc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	return out, total, nil
}

type statusCount struct {
	Status scheduling.Status
	Count  int64
}

// Stats counts appointments matching f per status, plus today's and upcoming active ones.
func (r *AppointmentRepository) Stats(ctx context.Context, f AppointmentFilter, now time.Time) (AppointmentStats, error) {
	stats := AppointmentStats{ByStatus: make(map[scheduling.Status]int64, len(scheduling.AllStatuses))}
	for _, s := range scheduling.AllStatuses {
		stats.ByStatus[s] = 0
	}

	scoped := f
	scoped.Status = ""
	var rows []statusCount
	if err := r.filtered(ctx, scoped).Select("status, count(*) as count").Group("status").Scan(&rows).Error; err != nil {
		return stats, fmt.Errorf("count by status: %w", err)
	}
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
		stats.Total += row.Count
	}

	today := scoped
	today.From, today.To = scheduling.DayBounds(now, r.loc)
	if err := r.filtered(ctx, today).Count(&stats.Today).Error; err != nil {
		return stats, fmt.Errorf("count today: %w", err)
	}

	if err := r.filtered(ctx, scoped).
		Where("appointment_date > ? AND status IN ?", now, scheduling.ActiveStatuses).
		Count(&stats.Upcoming).Error; err != nil {
		return stats, fmt.Errorf("count upcoming: %w", err)
	}
	return stats, nil
}

func (r *AppointmentRepository) filtered(ctx context.Context, f AppointmentFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Appointment{})
	if f.PatientID != "" {
		q = q.Where("patient_id = ?", f.PatientID)
	}
	if f.DoctorID != "" {
		q = q.Where("doctor_id = ?", f.DoctorID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if !f.From.IsZero() {
		q = q.Where("appointment_date >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("appointment_date <= ?", f.To)
	}
	return q
}

func (r *AppointmentRepository) conflict(a *models.Appointment) error {
	return &scheduling.ConflictError{
		DoctorID: a.DoctorID,
		Date:     a.AppointmentDate.In(r.loc).Format(scheduling.DateLayout),
		Start:    a.TimeSlot.Start,
	}
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
