package models

import (
	"time"
)

// MedicalRecordStatus represents the review state of a medical record
type MedicalRecordStatus string

const (
	RecordStatusDraft     MedicalRecordStatus = "draft"
	RecordStatusCompleted MedicalRecordStatus = "completed"
	RecordStatusReviewed  MedicalRecordStatus = "reviewed"
	RecordStatusArchived  MedicalRecordStatus = "archived"
)

// VitalSigns captured at the visit. Zero means not measured.
type VitalSigns struct {
	Systolic         int     `json:"systolic,omitempty" binding:"omitempty,min=50,max=300"`
	Diastolic        int     `json:"diastolic,omitempty" binding:"omitempty,min=30,max=200"`
	HeartRate        int     `json:"heartRate,omitempty" binding:"omitempty,min=30,max=250"`
	Temperature      float64 `json:"temperature,omitempty" binding:"omitempty,min=90,max=110"`
	Weight           float64 `json:"weight,omitempty" binding:"omitempty,min=1,max=500"`
	Height           float64 `json:"height,omitempty" binding:"omitempty,min=30,max=300"`
	RespiratoryRate  int     `json:"respiratoryRate,omitempty" binding:"omitempty,min=5,max=60"`
	OxygenSaturation int     `json:"oxygenSaturation,omitempty" binding:"omitempty,min=70,max=100"`
}

// BMI derives body-mass index from weight (kg) and height (cm).
func (v VitalSigns) BMI() float64 {
	if v.Weight <= 0 || v.Height <= 0 {
		return 0
	}
	m := v.Height / 100
	return v.Weight / (m * m)
}

// Diagnosis of the visit.
type Diagnosis struct {
	Primary   string   `json:"primary" binding:"required"`
	Secondary []string `json:"secondary,omitempty"`
}

// Medication prescribed as part of the treatment plan.
type Medication struct {
	Name         string `json:"name" binding:"required"`
	Dosage       string `json:"dosage" binding:"required"`
	Frequency    string `json:"frequency" binding:"required"`
	Duration     string `json:"duration" binding:"required"`
	Instructions string `json:"instructions,omitempty"`
}

// MedicalRecord represents a patient's visit record written by a doctor
type MedicalRecord struct {
	BaseModel
	PatientID            string              `gorm:"size:36;index;not null" json:"patientId"`
	DoctorID             string              `gorm:"size:36;index;not null" json:"doctorId"`
	AppointmentID        *string             `gorm:"size:36;index" json:"appointmentId,omitempty"`
	VisitDate            time.Time           `gorm:"index" json:"visitDate"`
	ChiefComplaint       string              `gorm:"size:500;not null" json:"chiefComplaint"`
	VitalSigns           VitalSigns          `gorm:"serializer:json;type:json" json:"vitalSigns"`
	PhysicalExamination  string              `gorm:"size:2000" json:"physicalExamination,omitempty"`
	Diagnosis            Diagnosis           `gorm:"serializer:json;type:json" json:"diagnosis"`
	Medications          []Medication        `gorm:"serializer:json;type:json" json:"medications,omitempty"`
	FollowUpInstructions string              `gorm:"size:1000" json:"followUpInstructions,omitempty"`
	IsConfidential       bool                `gorm:"default:false" json:"isConfidential"`
	Status               MedicalRecordStatus `gorm:"size:20;not null;default:'draft'" json:"status"`

	Attachments []MedicalRecordAttachment `gorm:"foreignKey:MedicalRecordID" json:"attachments,omitempty"`
}

// MedicalRecordAttachment is the metadata row for a file kept in object storage
type MedicalRecordAttachment struct {
	BaseModel
	MedicalRecordID string `gorm:"size:36;index;not null" json:"medicalRecordId"`
	FileName        string `gorm:"size:255;not null" json:"fileName"`
	FileType        string `gorm:"size:100;not null" json:"fileType"`
	Size            int64  `json:"size"`
	ObjectKey       string `gorm:"size:255;not null" json:"-"`
}
