package models

import (
	"time"

	"hospital-app-server/internal/scheduling"
)

// Priority of an appointment request.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// PaymentStatus of the consultation fee.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentRefunded  PaymentStatus = "refunded"
)

// TimeSlot is the booked interval as "HH:MM" strings.
type TimeSlot struct {
	Start string `gorm:"size:5;not null" json:"start"`
	End   string `gorm:"size:5;not null" json:"end"`
}

// PrescriptionEntry is one medication line written during a consultation.
type PrescriptionEntry struct {
	Medication   string `json:"medication" binding:"required"`
	Dosage       string `json:"dosage" binding:"required"`
	Frequency    string `json:"frequency" binding:"required"`
	Duration     string `json:"duration" binding:"required"`
	Instructions string `json:"instructions,omitempty"`
}

// Appointment represents a scheduled medical appointment.
//
// AppointmentDate is the instant the visit starts: the calendar day combined
// with TimeSlot.Start in the clinic's time zone.
type Appointment struct {
	BaseModel
	PatientID       string              `gorm:"size:36;index:idx_patient_date,priority:1;not null" json:"patientId"`
	DoctorID        string              `gorm:"size:36;index:idx_doctor_date,priority:1;not null" json:"doctorId"`
	AppointmentDate time.Time           `gorm:"index:idx_patient_date,priority:2;index:idx_doctor_date,priority:2;index;not null" json:"appointmentDate"`
	TimeSlot        TimeSlot            `gorm:"embedded;embeddedPrefix:slot_" json:"timeSlot"`
	Reason          string              `gorm:"size:500;not null" json:"reason"`
	Symptoms        string              `gorm:"size:1000" json:"symptoms,omitempty"`
	Status          scheduling.Status   `gorm:"size:20;index;not null;default:'scheduled'" json:"status"`
	Priority        Priority            `gorm:"size:10;not null;default:'normal'" json:"priority"`
	IsEmergency     bool                `gorm:"default:false" json:"isEmergency"`
	Notes           string              `gorm:"size:2000" json:"notes,omitempty"`
	Diagnosis       string              `gorm:"size:1000" json:"diagnosis,omitempty"`
	Prescription    []PrescriptionEntry `gorm:"serializer:json;type:json" json:"prescription,omitempty"`
	FollowUpDate    *time.Time          `json:"followUpDate,omitempty"`
	ConsultationFee *float64            `json:"consultationFee,omitempty"`
	PaymentStatus   PaymentStatus       `gorm:"size:10;not null;default:'pending'" json:"paymentStatus"`

	// ActiveSlot is non-NULL only while the appointment occupies its slot.
	// The unique index makes "one active booking per doctor, day and start"
	// a property of the table rather than of the caller.
	ActiveSlot *string `gorm:"size:100;uniqueIndex:idx_active_slot" json:"-"`

	// Relations
	Patient *User `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Doctor  *User `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
}

// ActiveSlotFor returns the uniqueness key for the appointment in status,
// or nil if that status does not hold the slot.
func (a *Appointment) ActiveSlotFor(status scheduling.Status, loc *time.Location) *string {
	if !status.IsActive() {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}
	key := scheduling.ActiveSlotKey(a.DoctorID, a.AppointmentDate.In(loc), a.TimeSlot.Start)
	return &key
}

// Slot converts the stored time slot.
func (a *Appointment) Slot() scheduling.Slot {
	return scheduling.Slot{Start: a.TimeSlot.Start, End: a.TimeSlot.End}
}

// DurationMinutes is the length of the booked slot.
func (a *Appointment) DurationMinutes() int {
	start, err := scheduling.TimeToMinutes(a.TimeSlot.Start)
	if err != nil {
		return 0
	}
	end, err := scheduling.TimeToMinutes(a.TimeSlot.End)
	if err != nil {
		return 0
	}
	return end - start
}

// IsPast reports whether the appointment time has passed.
func (a *Appointment) IsPast(now time.Time) bool {
	return now.After(a.AppointmentDate)
}

// IsParticipant reports whether userID is the patient or the doctor.
func (a *Appointment) IsParticipant(userID string) bool {
	return userID != "" && (userID == a.PatientID || userID == a.DoctorID)
}
