package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hospital-app-server/internal/models"
	"hospital-app-server/internal/services"
	"hospital-app-server/internal/storage"
	"hospital-app-server/internal/utils"
)

const (
	maxAttachmentBytes = 10 << 20
	attachmentURLTTL   = 15 * time.Minute
)

// MedicalRecordHandler handles medical record related requests.
type MedicalRecordHandler struct {
	DB    *gorm.DB
	Store storage.AttachmentStore
	Log   *zap.Logger
}

// NewMedicalRecordHandler creates a new MedicalRecordHandler. store may be
// nil, in which case attachment endpoints answer 503.
func NewMedicalRecordHandler(db *gorm.DB, store storage.AttachmentStore, log *zap.Logger) *MedicalRecordHandler {
	return &MedicalRecordHandler{DB: db, Store: store, Log: log}
}

// CreateMedicalRecordRequest represents the request body for creating a medical record.
type CreateMedicalRecordRequest struct {
	PatientID            string              `json:"patientId" binding:"required,uuid"`
	AppointmentID        *string             `json:"appointmentId" binding:"omitempty,uuid"`
	VisitDate            *time.Time          `json:"visitDate"`
	ChiefComplaint       string              `json:"chiefComplaint" binding:"required,max=500"`
	VitalSigns           models.VitalSigns   `json:"vitalSigns"`
	PhysicalExamination  string              `json:"physicalExamination" binding:"max=2000"`
	Diagnosis            models.Diagnosis    `json:"diagnosis"`
	Medications          []models.Medication `json:"medications" binding:"omitempty,dive"`
	FollowUpInstructions string              `json:"followUpInstructions" binding:"max=1000"`
	IsConfidential       bool                `json:"isConfidential"`
	Status               string              `json:"status" binding:"omitempty,oneof=draft completed reviewed archived"`
}

// CreateMedicalRecord handles creating a new medical record. Only doctors write records.
func (h *MedicalRecordHandler) CreateMedicalRecord(c *gin.Context) {
	var req CreateMedicalRecordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var patient models.User
	if err := h.DB.Where("id = ? AND role = ?", req.PatientID, models.RolePatient).First(&patient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Patient not found")
		} else {
			utils.InternalServerError(c, "Database error verifying patient")
		}
		return
	}

	if req.AppointmentID != nil {
		var appointment models.Appointment
		if err := h.DB.First(&appointment, "id = ?", *req.AppointmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.NotFound(c, "Appointment not found")
			} else {
				utils.InternalServerError(c, "Database error verifying appointment")
			}
			return
		}
		if appointment.PatientID != patient.ID || appointment.DoctorID != actor.ID {
			utils.BadRequest(c, "Appointment does not belong to this patient and doctor")
			return
		}
	}

	record := models.MedicalRecord{
		PatientID:            patient.ID,
		DoctorID:             actor.ID,
		AppointmentID:        req.AppointmentID,
		VisitDate:            time.Now().UTC(),
		ChiefComplaint:       req.ChiefComplaint,
		VitalSigns:           req.VitalSigns,
		PhysicalExamination:  req.PhysicalExamination,
		Diagnosis:            req.Diagnosis,
		Medications:          req.Medications,
		FollowUpInstructions: req.FollowUpInstructions,
		IsConfidential:       req.IsConfidential,
		Status:               models.RecordStatusDraft,
	}
	if req.VisitDate != nil {
		record.VisitDate = req.VisitDate.UTC()
	}
	if req.Status != "" {
		record.Status = models.MedicalRecordStatus(req.Status)
	}

	if err := h.DB.Create(&record).Error; err != nil {
		h.Log.Error("create medical record failed", zap.String("patient_id", patient.ID), zap.Error(err))
		utils.InternalServerError(c, "Failed to create medical record")
		return
	}
	h.Log.Info("medical record created",
		zap.String("record_id", record.ID),
		zap.String("patient_id", record.PatientID),
		zap.String("doctor_id", record.DoctorID),
	)
	utils.Created(c, "Medical record created successfully", record)
}

// RecordListQuery pages a patient's records.
type RecordListQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=draft completed reviewed archived"`
	Page   int    `form:"page" binding:"omitempty,min=1"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// GetMedicalRecordsForPatient lists a patient's records. Patients see their
// own; doctors see non-confidential records and the ones they wrote.
func (h *MedicalRecordHandler) GetMedicalRecordsForPatient(c *gin.Context) {
	var q RecordListQuery
	if !utils.BindQuery(c, &q) {
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	patientID := c.Param("patientId")
	if actor.Role == models.RolePatient && actor.ID != patientID {
		utils.Forbidden(c, "You are not authorized to view these medical records")
		return
	}

	filter := func(db *gorm.DB) *gorm.DB {
		db = db.Model(&models.MedicalRecord{}).Where("patient_id = ?", patientID)
		if q.Status != "" {
			db = db.Where("status = ?", q.Status)
		}
		if actor.Role == models.RoleDoctor {
			db = db.Where("is_confidential = ? OR doctor_id = ?", false, actor.ID)
		}
		return db
	}

	var total int64
	if err := h.DB.Scopes(filter).Count(&total).Error; err != nil {
		utils.InternalServerError(c, "Failed to count medical records")
		return
	}
	p := utils.NewPagination(q.Page, q.Limit, total)

	var records []models.MedicalRecord
	if err := h.DB.Scopes(filter).Preload("Attachments").
		Order("visit_date desc").
		Offset((p.Page - 1) * p.Limit).
		Limit(p.Limit).
		Find(&records).Error; err != nil {
		h.Log.Error("list medical records failed", zap.String("patient_id", patientID), zap.Error(err))
		utils.InternalServerError(c, "Failed to fetch medical records")
		return
	}
	utils.Success(c, "Medical records fetched successfully", gin.H{
		"records":    records,
		"pagination": p,
	})
}

// GetMedicalRecordByID handles fetching a single medical record by its ID.
func (h *MedicalRecordHandler) GetMedicalRecordByID(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	record, ok := h.findRecord(c, c.Param("id"), true)
	if !ok {
		return
	}
	if !canViewRecord(actor, record) {
		utils.Forbidden(c, "You are not authorized to view this medical record")
		return
	}
	utils.Success(c, "Medical record fetched successfully", record)
}

// UpdateMedicalRecordRequest represents the request body for updating a medical record.
type UpdateMedicalRecordRequest struct {
	VisitDate            *time.Time          `json:"visitDate"`
	ChiefComplaint       *string             `json:"chiefComplaint" binding:"omitempty,min=1,max=500"`
	VitalSigns           *models.VitalSigns  `json:"vitalSigns"`
	PhysicalExamination  *string             `json:"physicalExamination" binding:"omitempty,max=2000"`
	Diagnosis            *models.Diagnosis   `json:"diagnosis"`
	Medications          []models.Medication `json:"medications" binding:"omitempty,dive"`
	FollowUpInstructions *string             `json:"followUpInstructions" binding:"omitempty,max=1000"`
	IsConfidential       *bool               `json:"isConfidential"`
	Status               *string             `json:"status" binding:"omitempty,oneof=draft completed reviewed archived"`
}

// UpdateMedicalRecord handles updating an existing medical record.
// Only the doctor who wrote it or an admin may change it.
func (h *MedicalRecordHandler) UpdateMedicalRecord(c *gin.Context) {
	var req UpdateMedicalRecordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	record, ok := h.findRecord(c, c.Param("id"), false)
	if !ok {
		return
	}
	if !canEditRecord(actor, record) {
		utils.Forbidden(c, "You are not authorized to update this medical record")
		return
	}

	if req.VisitDate != nil {
		record.VisitDate = req.VisitDate.UTC()
	}
	if req.ChiefComplaint != nil {
		record.ChiefComplaint = *req.ChiefComplaint
	}
	if req.VitalSigns != nil {
		record.VitalSigns = *req.VitalSigns
	}
	if req.PhysicalExamination != nil {
		record.PhysicalExamination = *req.PhysicalExamination
	}
	if req.Diagnosis != nil {
		record.Diagnosis = *req.Diagnosis
	}
	if req.Medications != nil {
		record.Medications = req.Medications
	}
	if req.FollowUpInstructions != nil {
		record.FollowUpInstructions = *req.FollowUpInstructions
	}
	if req.IsConfidential != nil {
		record.IsConfidential = *req.IsConfidential
	}
	if req.Status != nil {
		record.Status = models.MedicalRecordStatus(*req.Status)
	}

	if err := h.DB.Omit("Attachments").Save(record).Error; err != nil {
		h.Log.Error("update medical record failed", zap.String("record_id", record.ID), zap.Error(err))
		utils.InternalServerError(c, "Failed to update medical record")
		return
	}
	utils.Success(c, "Medical record updated successfully", record)
}

// DeleteMedicalRecord removes a record together with its stored attachments.
func (h *MedicalRecordHandler) DeleteMedicalRecord(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	record, ok := h.findRecord(c, c.Param("id"), true)
	if !ok {
		return
	}
	if !canEditRecord(actor, record) {
		utils.Forbidden(c, "You are not authorized to delete this medical record")
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("medical_record_id = ?", record.ID).Delete(&models.MedicalRecordAttachment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.MedicalRecord{}, "id = ?", record.ID).Error
	})
	if err != nil {
		h.Log.Error("delete medical record failed", zap.String("record_id", record.ID), zap.Error(err))
		utils.InternalServerError(c, "Failed to delete medical record")
		return
	}

	if h.Store != nil {
		for _, a := range record.Attachments {
			if err := h.Store.Remove(c.Request.Context(), a.ObjectKey); err != nil {
				h.Log.Warn("remove attachment object failed", zap.String("key", a.ObjectKey), zap.Error(err))
			}
		}
	}
	utils.Success(c, "Medical record deleted successfully", nil)
}

// UploadMedicalRecordAttachment stores a multipart "file" in object storage
// and links it to the record.
func (h *MedicalRecordHandler) UploadMedicalRecordAttachment(c *gin.Context) {
	if !h.storeReady(c) {
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	record, ok := h.findRecord(c, c.Param("id"), false)
	if !ok {
		return
	}
	if !canEditRecord(actor, record) {
		utils.Forbidden(c, "You are not authorized to attach files to this medical record")
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		utils.BadRequest(c, "A file is required in the 'file' form field")
		return
	}
	if header.Size > maxAttachmentBytes {
		utils.Error(c, http.StatusRequestEntityTooLarge, "File exceeds the 10 MB limit")
		return
	}
	file, err := header.Open()
	if err != nil {
		utils.BadRequest(c, "Could not read uploaded file")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := storage.ObjectKey(record.ID, header.Filename)
	if err := h.Store.Upload(c.Request.Context(), key, file, header.Size, contentType); err != nil {
		h.Log.Error("upload attachment failed", zap.String("record_id", record.ID), zap.Error(err))
		utils.InternalServerError(c, "Failed to store attachment")
		return
	}

	attachment := models.MedicalRecordAttachment{
		MedicalRecordID: record.ID,
		FileName:        header.Filename,
		FileType:        contentType,
		Size:            header.Size,
		ObjectKey:       key,
	}
	if err := h.DB.Create(&attachment).Error; err != nil {
		if rmErr := h.Store.Remove(c.Request.Context(), key); rmErr != nil {
			h.Log.Warn("remove orphaned attachment failed", zap.String("key", key), zap.Error(rmErr))
		}
		h.Log.Error("save attachment metadata failed", zap.String("record_id", record.ID), zap.Error(err))
		utils.InternalServerError(c, "Failed to save attachment")
		return
	}
	utils.Created(c, "File uploaded and linked to medical record successfully", attachment)
}

// GetMedicalRecordAttachment returns a short-lived download URL for an attachment.
func (h *MedicalRecordHandler) GetMedicalRecordAttachment(c *gin.Context) {
	if !h.storeReady(c) {
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	attachment, record, ok := h.findAttachment(c)
	if !ok {
		return
	}
	if !canViewRecord(actor, record) {
		utils.Forbidden(c, "You are not authorized to view this attachment")
		return
	}

	url, err := h.Store.PresignedURL(c.Request.Context(), attachment.ObjectKey, attachmentURLTTL)
	if err != nil {
		h.Log.Error("presign attachment failed", zap.String("attachment_id", attachment.ID), zap.Error(err))
		utils.InternalServerError(c, "Failed to create download link")
		return
	}
	utils.Success(c, "Attachment link created", gin.H{
		"attachment": attachment,
		"url":        url,
		"expiresIn":  int(attachmentURLTTL.Seconds()),
	})
}

// DeleteMedicalRecordAttachment unlinks an attachment and removes its object.
func (h *MedicalRecordHandler) DeleteMedicalRecordAttachment(c *gin.Context) {
	if !h.storeReady(c) {
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	attachment, record, ok := h.findAttachment(c)
	if !ok {
		return
	}
	if !canEditRecord(actor, record) {
		utils.Forbidden(c, "You are not authorized to remove this attachment")
		return
	}

	if err := h.DB.Delete(&models.MedicalRecordAttachment{}, "id = ?", attachment.ID).Error; err != nil {
		utils.InternalServerError(c, "Failed to delete attachment")
		return
	}
	if err := h.Store.Remove(c.Request.Context(), attachment.ObjectKey); err != nil {
		h.Log.Warn("remove attachment object failed", zap.String("key", attachment.ObjectKey), zap.Error(err))
	}
	utils.Success(c, "Attachment deleted successfully", nil)
}

func (h *MedicalRecordHandler) storeReady(c *gin.Context) bool {
	if h.Store == nil {
		utils.Error(c, http.StatusServiceUnavailable, "Attachment storage is not configured")
		return false
	}
	return true
}

func (h *MedicalRecordHandler) findRecord(c *gin.Context, id string, withAttachments bool) (*models.MedicalRecord, bool) {
	db := h.DB
	if withAttachments {
		db = db.Preload("Attachments")
	}
	var record models.MedicalRecord
	if err := db.First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Medical record not found")
		} else {
			utils.InternalServerError(c, "Database error")
		}
		return nil, false
	}
	return &record, true
}

func (h *MedicalRecordHandler) findAttachment(c *gin.Context) (*models.MedicalRecordAttachment, *models.MedicalRecord, bool) {
	var attachment models.MedicalRecordAttachment
	err := h.DB.First(&attachment, "id = ? AND medical_record_id = ?", c.Param("attachmentId"), c.Param("id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Attachment not found")
		} else {
			utils.InternalServerError(c, "Database error")
		}
		return nil, nil, false
	}
	record, ok := h.findRecord(c, attachment.MedicalRecordID, false)
	if !ok {
		return nil, nil, false
	}
	return &attachment, record, true
}

func canViewRecord(actor services.Actor, r *models.MedicalRecord) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RolePatient:
		return actor.ID == r.PatientID
	case models.RoleDoctor:
		return actor.ID == r.DoctorID || !r.IsConfidential
	}
	return false
}

func canEditRecord(actor services.Actor, r *models.MedicalRecord) bool {
	return actor.Role == models.RoleAdmin || (actor.Role == models.RoleDoctor && actor.ID == r.DoctorID)
}
