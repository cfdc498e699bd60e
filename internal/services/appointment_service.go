package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"hospital-app-server/internal/metrics"
	"hospital-app-server/internal/models"
	"hospital-app-server/internal/notify"
	"hospital-app-server/internal/repository"
	"hospital-app-server/internal/scheduling"
)

// ErrForbidden is returned when the actor may not touch the appointment.
var ErrForbidden = errors.New("you do not have permission to access this appointment")

// AppointmentStore is the persistence port used by AppointmentService.
type AppointmentStore interface {
	scheduling.AppointmentLookup
	Create(ctx context.Context, a *models.Appointment) error
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	UpdateStatus(ctx context.Context, a *models.Appointment, to scheduling.Status) error
	UpdateDetails(ctx context.Context, a *models.Appointment, fields map[string]any) error
	List(ctx context.Context, f repository.AppointmentFilter) ([]models.Appointment, int64, error)
	Stats(ctx context.Context, f repository.AppointmentFilter, now time.Time) (repository.AppointmentStats, error)
}

// UserDirectory resolves patients and doctors.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Notifier receives booking lifecycle events.
type Notifier interface {
	Booked(ctx context.Context, n notify.AppointmentNotice)
	Cancelled(ctx context.Context, n notify.AppointmentNotice)
}

// Actor is the authenticated caller.
type Actor struct {
	ID   string
	Role models.Role
}

// BookingRequest is a validated create-appointment input.
type BookingRequest struct {
	PatientID   string
	DoctorID    string
	Date        time.Time
	TimeSlot    models.TimeSlot
	Reason      string
	Symptoms    string
	Priority    models.Priority
	IsEmergency bool
}

// DetailsUpdate carries the optional fields of PUT /appointments/:id.
type DetailsUpdate struct {
	Reason          *string
	Symptoms        *string
	Priority        *models.Priority
	Notes           *string
	Diagnosis       *string
	Prescription    []models.PrescriptionEntry
	FollowUpDate    *time.Time
	ConsultationFee *float64
	PaymentStatus   *models.PaymentStatus
}

// AppointmentService implements booking, availability and the status lifecycle.
type AppointmentService struct {
	store     AppointmentStore
	users     UserDirectory
	resolver  *scheduling.Resolver
	lifecycle scheduling.Lifecycle
	notifier  Notifier
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time
}

// NewAppointmentService wires the service. notifier, m and log may be nil.
func NewAppointmentService(
	store AppointmentStore,
	users UserDirectory,
	policy scheduling.SlotPolicy,
	cancellation scheduling.CancellationPolicy,
	loc *time.Location,
	notifier Notifier,
	m *metrics.Metrics,
	log *zap.Logger,
) *AppointmentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AppointmentService{
		store:     store,
		users:     users,
		resolver:  scheduling.NewResolver(store, policy, loc),
		lifecycle: scheduling.NewLifecycle(cancellation),
		notifier:  notifier,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// Location is the clinic calendar.
func (s *AppointmentService) Location() *time.Location {
	return s.resolver.Location()
}

// Book creates a scheduled appointment if the slot is free. Only patients
// book, and always for themselves.
func (s *AppointmentService) Book(ctx context.Context, actor Actor, req BookingRequest) (*models.Appointment, error) {
	if actor.Role != models.RolePatient {
		return nil, ErrForbidden
	}
	if req.PatientID != "" && req.PatientID != actor.ID {
		return nil, ErrForbidden
	}
	req.PatientID = actor.ID

	appointmentAt, err := s.validateBooking(req)
	if err != nil {
		s.metrics.ObserveBooking("invalid")
		return nil, err
	}

	doctor, err := s.activeUser(ctx, req.DoctorID, models.RoleDoctor, "doctor")
	if err != nil {
		return nil, err
	}
	patient, err := s.activeUser(ctx, req.PatientID, models.RolePatient, "patient")
	if err != nil {
		return nil, err
	}

	taken, err := s.resolver.HasConflict(ctx, req.DoctorID, appointmentAt, req.TimeSlot.Start)
	if err != nil {
		s.metrics.ObserveBooking("error")
		return nil, err
	}
	if taken {
		s.metrics.ObserveBooking("conflict")
		return nil, &scheduling.ConflictError{
			DoctorID: req.DoctorID,
			Date:     appointmentAt.Format(scheduling.DateLayout),
			Start:    req.TimeSlot.Start,
		}
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	a := &models.Appointment{
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		AppointmentDate: appointmentAt,
		TimeSlot:        req.TimeSlot,
		Reason:          strings.TrimSpace(req.Reason),
		Symptoms:        strings.TrimSpace(req.Symptoms),
		Status:          scheduling.StatusScheduled,
		Priority:        priority,
		IsEmergency:     req.IsEmergency,
		PaymentStatus:   models.PaymentPending,
	}
	// The pre-check above is a fast path; the store's unique active slot
	// decides races between concurrent bookings.
	if err := s.store.Create(ctx, a); err != nil {
		var conflict *scheduling.ConflictError
		if errors.As(err, &conflict) {
			s.metrics.ObserveBooking("conflict")
		} else {
			s.metrics.ObserveBooking("error")
		}
		return nil, err
	}
	a.Patient, a.Doctor = patient, doctor
	s.metrics.ObserveBooking("booked")

	s.log.Info("appointment booked",
		zap.String("appointment_id", a.ID),
		zap.String("doctor_id", a.DoctorID),
		zap.String("patient_id", a.PatientID),
		zap.Time("appointment_date", a.AppointmentDate),
	)
	if s.notifier != nil {
		s.notifier.Booked(ctx, s.notice(a))
	}
	return a, nil
}

func (s *AppointmentService) validateBooking(req BookingRequest) (time.Time, error) {
	verr := &scheduling.ValidationError{}
	if req.DoctorID == "" {
		verr.Add("doctorId", "doctor is required")
	}
	if req.PatientID == "" {
		verr.Add("patientId", "patient is required")
	}
	if strings.TrimSpace(req.Reason) == "" {
		verr.Add("reason", "reason is required")
	} else if len(req.Reason) > 500 {
		verr.Add("reason", "reason cannot exceed 500 characters")
	}
	if len(req.Symptoms) > 1000 {
		verr.Add("symptoms", "symptoms cannot exceed 1000 characters")
	}
	switch req.Priority {
	case "", models.PriorityLow, models.PriorityNormal, models.PriorityHigh, models.PriorityUrgent:
	default:
		verr.Add("priority", "priority must be one of low, normal, high, urgent")
	}

	start, startErr := scheduling.ParseTime(req.TimeSlot.Start)
	if startErr != nil {
		verr.Add("timeSlot.start", startErr.Error())
	}
	if _, err := scheduling.ParseTime(req.TimeSlot.End); err != nil {
		verr.Add("timeSlot.end", err.Error())
	} else if startErr == nil && !scheduling.IsTimeSlotValid(req.TimeSlot.Start, req.TimeSlot.End) {
		verr.Add("timeSlot.end", "end time must be after start time")
	}

	var appointmentAt time.Time
	if req.Date.IsZero() {
		verr.Add("appointmentDate", "appointment date is required")
	} else if startErr == nil {
		loc := s.resolver.Location()
		d := req.Date.In(loc)
		appointmentAt = time.Date(d.Year(), d.Month(), d.Day(), start.Hour, start.Minute, 0, 0, loc)
		if appointmentAt.Before(s.now()) {
			verr.Add("appointmentDate", "appointment date cannot be in the past")
		}
	}
	return appointmentAt, verr.OrNil()
}

func (s *AppointmentService) activeUser(ctx context.Context, id string, role models.Role, entity string) (*models.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		var nf *scheduling.NotFoundError
		if errors.As(err, &nf) {
			return nil, &scheduling.NotFoundError{Entity: entity, ID: id}
		}
		return nil, err
	}
	if u.Role != role || !u.IsActive {
		return nil, &scheduling.NotFoundError{Entity: entity, ID: id}
	}
	return u, nil
}

// AvailableSlots lists the open slots of an active doctor on date's calendar day.
func (s *AppointmentService) AvailableSlots(ctx context.Context, doctorID string, date time.Time) ([]scheduling.Slot, error) {
	if _, err := s.activeUser(ctx, doctorID, models.RoleDoctor, "doctor"); err != nil {
		return nil, err
	}
	return s.resolver.AvailableSlots(ctx, doctorID, date)
}

// HasConflict reports whether the doctor's slot is taken.
func (s *AppointmentService) HasConflict(ctx context.Context, doctorID string, date time.Time, start string) (bool, error) {
	if _, err := scheduling.ParseTime(start); err != nil {
		return false, scheduling.NewValidationError("start", err.Error())
	}
	return s.resolver.HasConflict(ctx, doctorID, date, start)
}

// Get returns an appointment visible to actor.
func (s *AppointmentService) Get(ctx context.Context, actor Actor, id string) (*models.Appointment, error) {
	a, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, a) {
		return nil, ErrForbidden
	}
	return a, nil
}

// UpdateStatus applies a lifecycle transition. Patients may only cancel
// their own appointments; doctors act on their own.
func (s *AppointmentService) UpdateStatus(ctx context.Context, actor Actor, id string, to scheduling.Status) (*models.Appointment, error) {
	a, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, a) {
		return nil, ErrForbidden
	}
	if actor.Role == models.RolePatient && to != scheduling.StatusCancelled {
		return nil, ErrForbidden
	}

	from := a.Status
	if err := s.lifecycle.Transition(from, to, a.AppointmentDate, s.now()); err != nil {
		return nil, err
	}
	if err := s.store.UpdateStatus(ctx, a, to); err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition(string(from), string(to))
	s.log.Info("appointment status changed",
		zap.String("appointment_id", a.ID),
		zap.String("from", string(from)),
		zap.String("status", string(to)),
		zap.String("actor_id", actor.ID),
	)
	if to == scheduling.StatusCancelled && s.notifier != nil {
		s.notifier.Cancelled(ctx, s.notice(a))
	}
	return a, nil
}

// Cancel is UpdateStatus to cancelled.
func (s *AppointmentService) Cancel(ctx context.Context, actor Actor, id string) (*models.Appointment, error) {
	return s.UpdateStatus(ctx, actor, id, scheduling.StatusCancelled)
}

// UpdateDetails edits non-scheduling fields. Patients may change reason and
// symptoms of their own active appointments only.
func (s *AppointmentService) UpdateDetails(ctx context.Context, actor Actor, id string, in DetailsUpdate) (*models.Appointment, error) {
	a, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, a) {
		return nil, ErrForbidden
	}

	verr := &scheduling.ValidationError{}
	fields := map[string]any{}
	if in.Reason != nil {
		r := strings.TrimSpace(*in.Reason)
		if r == "" || len(r) > 500 {
			verr.Add("reason", "reason must be between 1 and 500 characters")
		}
		fields["reason"] = r
		a.Reason = r
	}
	if in.Symptoms != nil {
		if len(*in.Symptoms) > 1000 {
			verr.Add("symptoms", "symptoms cannot exceed 1000 characters")
		}
		fields["symptoms"] = *in.Symptoms
		a.Symptoms = *in.Symptoms
	}

	clinical := in.Priority != nil || in.Notes != nil || in.Diagnosis != nil || in.Prescription != nil ||
		in.FollowUpDate != nil || in.ConsultationFee != nil || in.PaymentStatus != nil
	if actor.Role == models.RolePatient {
		if clinical {
			return nil, ErrForbidden
		}
		if !a.Status.IsActive() {
			return nil, &scheduling.PolicyViolation{Reason: fmt.Sprintf("appointment is already %s", a.Status)}
		}
	}

	if in.Priority != nil {
		switch *in.Priority {
		case models.PriorityLow, models.PriorityNormal, models.PriorityHigh, models.PriorityUrgent:
		default:
			verr.Add("priority", "priority must be one of low, normal, high, urgent")
		}
		fields["priority"] = *in.Priority
		a.Priority = *in.Priority
	}
	if in.Notes != nil {
		if len(*in.Notes) > 2000 {
			verr.Add("notes", "notes cannot exceed 2000 characters")
		}
		fields["notes"] = *in.Notes
		a.Notes = *in.Notes
	}
	if in.Diagnosis != nil {
		if len(*in.Diagnosis) > 1000 {
			verr.Add("diagnosis", "diagnosis cannot exceed 1000 characters")
		}
		fields["diagnosis"] = *in.Diagnosis
		a.Diagnosis = *in.Diagnosis
	}
	if in.Prescription != nil {
		a.Prescription = in.Prescription
		fields["prescription"] = a.Prescription
	}
	if in.FollowUpDate != nil {
		if in.FollowUpDate.Before(s.now()) {
			verr.Add("followUpDate", "follow-up date cannot be in the past")
		}
		fields["follow_up_date"] = *in.FollowUpDate
		a.FollowUpDate = in.FollowUpDate
	}
	if in.ConsultationFee != nil {
		if *in.ConsultationFee < 0 {
			verr.Add("consultationFee", "consultation fee cannot be negative")
		}
		fields["consultation_fee"] = *in.ConsultationFee
		a.ConsultationFee = in.ConsultationFee
	}
	if in.PaymentStatus != nil {
		switch *in.PaymentStatus {
		case models.PaymentPending, models.PaymentPaid, models.PaymentCancelled, models.PaymentRefunded:
		default:
			verr.Add("paymentStatus", "payment status must be one of pending, paid, cancelled, refunded")
		}
		fields["payment_status"] = *in.PaymentStatus
		a.PaymentStatus = *in.PaymentStatus
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if err := s.store.UpdateDetails(ctx, a, fields); err != nil {
		return nil, err
	}
	return a, nil
}

// ListQuery is the caller-facing filter of List.
type ListQuery struct {
	Status string
	Date   time.Time
	Page   int
	Limit  int
}

// List returns appointments scoped to actor: patients and doctors see their own.
func (s *AppointmentService) List(ctx context.Context, actor Actor, q ListQuery) ([]models.Appointment, int64, error) {
	f := repository.AppointmentFilter{Page: q.Page, Limit: q.Limit}
	switch actor.Role {
	case models.RolePatient:
		f.PatientID = actor.ID
	case models.RoleDoctor:
		f.DoctorID = actor.ID
	case models.RoleAdmin:
	default:
		return nil, 0, ErrForbidden
	}
	if q.Status != "" {
		st, err := scheduling.ParseStatus(q.Status)
		if err != nil {
			return nil, 0, err
		}
		f.Status = st
	}
	if !q.Date.IsZero() {
		f.From, f.To = scheduling.DayBounds(q.Date, s.resolver.Location())
	}
	return s.store.List(ctx, f)
}

// Stats summarises appointment counts for a doctor's own book or, for admins, the whole clinic.
func (s *AppointmentService) Stats(ctx context.Context, actor Actor) (repository.AppointmentStats, error) {
	var f repository.AppointmentFilter
	switch actor.Role {
	case models.RoleDoctor:
		f.DoctorID = actor.ID
	case models.RoleAdmin:
	default:
		return repository.AppointmentStats{}, ErrForbidden
	}
	return s.store.Stats(ctx, f, s.now())
}

func canView(actor Actor, a *models.Appointment) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RolePatient:
		return a.PatientID == actor.ID
	case models.RoleDoctor:
		return a.DoctorID == actor.ID
	}
	return false
}

func (s *AppointmentService) notice(a *models.Appointment) notify.AppointmentNotice {
	n := notify.AppointmentNotice{
		Date:   a.AppointmentDate.In(s.resolver.Location()),
		Start:  a.TimeSlot.Start,
		End:    a.TimeSlot.End,
		Reason: a.Reason,
	}
	if a.Patient != nil {
		n.PatientEmail = a.Patient.Email
		n.PatientName = a.Patient.FullName()
	}
	if a.Doctor != nil {
		n.DoctorName = a.Doctor.FullName()
	}
	return n
}
