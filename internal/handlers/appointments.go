package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hospital-app-server/internal/middleware"
	"hospital-app-server/internal/models"
	"hospital-app-server/internal/repository"
	"hospital-app-server/internal/scheduling"
	"hospital-app-server/internal/services"
	"hospital-app-server/internal/utils"
)

// AppointmentService is the booking core used by AppointmentHandler.
type AppointmentService interface {
	Location() *time.Location
	Book(ctx context.Context, actor services.Actor, req services.BookingRequest) (*models.Appointment, error)
	AvailableSlots(ctx context.Context, doctorID string, date time.Time) ([]scheduling.Slot, error)
	Get(ctx context.Context, actor services.Actor, id string) (*models.Appointment, error)
	List(ctx context.Context, actor services.Actor, q services.ListQuery) ([]models.Appointment, int64, error)
	UpdateStatus(ctx context.Context, actor services.Actor, id string, to scheduling.Status) (*models.Appointment, error)
	Cancel(ctx context.Context, actor services.Actor, id string) (*models.Appointment, error)
	UpdateDetails(ctx context.Context, actor services.Actor, id string, in services.DetailsUpdate) (*models.Appointment, error)
	Stats(ctx context.Context, actor services.Actor) (repository.AppointmentStats, error)
}

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	Service AppointmentService
	Log     *zap.Logger
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(svc AppointmentService, log *zap.Logger) *AppointmentHandler {
	return &AppointmentHandler{Service: svc, Log: log}
}

// TimeSlotRequest is the {start, end} pair of a booking.
type TimeSlotRequest struct {
	Start string `json:"start" binding:"required,hhmm"`
	End   string `json:"end" binding:"required,hhmm"`
}

// CreateAppointmentRequest represents the request body for creating an appointment.
// Only patients book; PatientID may be omitted and must match the token when set.
type CreateAppointmentRequest struct {
	DoctorID        string          `json:"doctorId" binding:"required"`
	PatientID       string          `json:"patientId"`
	AppointmentDate string          `json:"appointmentDate" binding:"required"`
	TimeSlot        TimeSlotRequest `json:"timeSlot"`
	Reason          string          `json:"reason" binding:"required,max=500"`
	Symptoms        string          `json:"symptoms" binding:"max=1000"`
	Priority        string          `json:"priority" binding:"omitempty,oneof=low normal high urgent"`
	IsEmergency     bool            `json:"isEmergency"`
}

// CreateAppointment books a slot.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	date, err := parseDay(req.AppointmentDate, h.Service.Location())
	if err != nil {
		utils.ValidationFailed(c, []scheduling.FieldError{{Field: "appointmentDate", Message: err.Error()}})
		return
	}

	appointment, err := h.Service.Book(c.Request.Context(), actor, services.BookingRequest{
		PatientID:   req.PatientID,
		DoctorID:    req.DoctorID,
		Date:        date,
		TimeSlot:    models.TimeSlot{Start: req.TimeSlot.Start, End: req.TimeSlot.End},
		Reason:      req.Reason,
		Symptoms:    req.Symptoms,
		Priority:    models.Priority(req.Priority),
		IsEmergency: req.IsEmergency,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Created(c, "Appointment booked successfully", appointment)
}

// AvailableSlotsQuery is the ?date= parameter.
type AvailableSlotsQuery struct {
	Date string `form:"date" binding:"required"`
}

// GetAvailableSlots lists the open slots of a doctor for a calendar day.
func (h *AppointmentHandler) GetAvailableSlots(c *gin.Context) {
	var q AvailableSlotsQuery
	if !utils.BindQuery(c, &q) {
		return
	}
	date, err := parseDay(q.Date, h.Service.Location())
	if err != nil {
		utils.ValidationFailed(c, []scheduling.FieldError{{Field: "date", Message: err.Error()}})
		return
	}

	slots, err := h.Service.AvailableSlots(c.Request.Context(), c.Param("doctorId"), date)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Available slots fetched successfully", gin.H{
		"date":           date.Format(scheduling.DateLayout),
		"doctorId":       c.Param("doctorId"),
		"availableSlots": slots,
	})
}

// ListAppointmentsQuery filters GET /appointments.
type ListAppointmentsQuery struct {
	Status string `form:"status"`
	Date   string `form:"date"`
	Page   int    `form:"page" binding:"omitempty,min=1"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// GetAppointments lists the caller's appointments; admins see all.
func (h *AppointmentHandler) GetAppointments(c *gin.Context) {
	var q ListAppointmentsQuery
	if !utils.BindQuery(c, &q) {
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	lq := services.ListQuery{Status: q.Status, Page: q.Page, Limit: q.Limit}
	if q.Date != "" {
		date, err := parseDay(q.Date, h.Service.Location())
		if err != nil {
			utils.ValidationFailed(c, []scheduling.FieldError{{Field: "date", Message: err.Error()}})
			return
		}
		lq.Date = date
	}

	list, total, err := h.Service.List(c.Request.Context(), actor, lq)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Appointments fetched successfully", gin.H{
		"appointments": list,
		"pagination":   utils.NewPagination(q.Page, q.Limit, total),
	})
}

// GetAppointmentByID returns one appointment visible to the caller.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	appointment, err := h.Service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Appointment fetched successfully", appointment)
}

// UpdateStatusRequest is the body of PATCH /appointments/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateAppointmentStatus applies a lifecycle transition.
func (h *AppointmentHandler) UpdateAppointmentStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	status, err := scheduling.ParseStatus(req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	appointment, err := h.Service.UpdateStatus(c.Request.Context(), actor, c.Param("id"), status)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Appointment status updated successfully", appointment)
}

// CancelAppointment cancels with at least the configured notice.
func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	appointment, err := h.Service.Cancel(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Appointment cancelled successfully", appointment)
}

// UpdateAppointmentRequest is the body of PUT /appointments/:id.
type UpdateAppointmentRequest struct {
	Reason          *string                    `json:"reason" binding:"omitempty,min=1,max=500"`
	Symptoms        *string                    `json:"symptoms" binding:"omitempty,max=1000"`
	Priority        *string                    `json:"priority" binding:"omitempty,oneof=low normal high urgent"`
	Notes           *string                    `json:"notes" binding:"omitempty,max=2000"`
	Diagnosis       *string                    `json:"diagnosis" binding:"omitempty,max=1000"`
	Prescription    []models.PrescriptionEntry `json:"prescription" binding:"omitempty,dive"`
	FollowUpDate    *time.Time                 `json:"followUpDate"`
	ConsultationFee *float64                   `json:"consultationFee" binding:"omitempty,min=0"`
	PaymentStatus   *string                    `json:"paymentStatus" binding:"omitempty,oneof=pending paid cancelled refunded"`
}

// UpdateAppointment edits clinical and billing details.
func (h *AppointmentHandler) UpdateAppointment(c *gin.Context) {
	var req UpdateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	in := services.DetailsUpdate{
		Reason:          req.Reason,
		Symptoms:        req.Symptoms,
		Notes:           req.Notes,
		Diagnosis:       req.Diagnosis,
		Prescription:    req.Prescription,
		FollowUpDate:    req.FollowUpDate,
		ConsultationFee: req.ConsultationFee,
	}
	if req.Priority != nil {
		p := models.Priority(*req.Priority)
		in.Priority = &p
	}
	if req.PaymentStatus != nil {
		ps := models.PaymentStatus(*req.PaymentStatus)
		in.PaymentStatus = &ps
	}

	appointment, err := h.Service.UpdateDetails(c.Request.Context(), actor, c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Appointment updated successfully", appointment)
}

// GetAppointmentStats returns status counts for a doctor or the whole clinic.
func (h *AppointmentHandler) GetAppointmentStats(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	stats, err := h.Service.Stats(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Appointment statistics fetched successfully", stats)
}

func (h *AppointmentHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, services.ErrForbidden) {
		utils.Forbidden(c, err.Error())
		return
	}
	if utils.RespondError(c, err) {
		return
	}
	h.Log.Error("appointment request failed",
		zap.String("path", c.FullPath()),
		zap.String("appointment_id", c.Param("id")),
		zap.Error(err),
	)
	utils.InternalServerError(c, "Internal server error")
}

func actorFromContext(c *gin.Context) (services.Actor, bool) {
	id, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return services.Actor{}, false
	}
	role, _ := middleware.GetUserRoleFromContext(c)
	return services.Actor{ID: id, Role: role}, true
}

// parseDay accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// calendar day in loc.
func parseDay(s string, loc *time.Location) (time.Time, error) {
	if d, err := time.ParseInLocation(scheduling.DateLayout, s, loc); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.New("must be a date in YYYY-MM-DD format")
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}
