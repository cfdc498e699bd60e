package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hospital-app-server/internal/scheduling"
)

// ResponseData represents the structure of a standard API response.
type ResponseData struct {
	Status  int                     `json:"status"`
	Message string                  `json:"message"`
	Data    interface{}             `json:"data,omitempty"`
	Error   string                  `json:"error,omitempty"`
	Details []scheduling.FieldError `json:"details,omitempty"`
}

// Pagination is returned alongside list payloads.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

// NewPagination derives the page count.
func NewPagination(page, limit int, total int64) Pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + int64(limit) - 1) / int64(limit),
	}
}

// Success sends a standard success response.
func Success(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, ResponseData{
		Status:  http.StatusOK,
		Message: message,
		Data:    data,
	})
}

// Created sends a standard resource created response.
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, ResponseData{
		Status:  http.StatusCreated,
		Message: message,
		Data:    data,
	})
}

// Error sends a standard error response.
func Error(c *gin.Context, statusCode int, errorMessage string) {
	c.JSON(statusCode, ResponseData{
		Status:  statusCode,
		Message: "An error occurred",
		Error:   errorMessage,
	})
}

// BadRequest sends a 400 Bad Request error response.
func BadRequest(c *gin.Context, errorMessage string) {
	Error(c, http.StatusBadRequest, errorMessage)
}

// ValidationFailed sends a 400 with field-level details.
func ValidationFailed(c *gin.Context, fields []scheduling.FieldError) {
	c.JSON(http.StatusBadRequest, ResponseData{
		Status:  http.StatusBadRequest,
		Message: "Validation failed",
		Error:   "invalid request",
		Details: fields,
	})
}

// Unauthorized sends a 401 Unauthorized error response.
func Unauthorized(c *gin.Context, errorMessage string) {
	Error(c, http.StatusUnauthorized, errorMessage)
}

// Forbidden sends a 403 Forbidden error response.
func Forbidden(c *gin.Context, errorMessage string) {
	Error(c, http.StatusForbidden, errorMessage)
}

// NotFound sends a 404 Not Found error response.
func NotFound(c *gin.Context, errorMessage string) {
	Error(c, http.StatusNotFound, errorMessage)
}

// Conflict sends a 409 Conflict error response.
func Conflict(c *gin.Context, errorMessage string) {
	Error(c, http.StatusConflict, errorMessage)
}

// UnprocessableEntity sends a 422 for requests refused by a business rule.
func UnprocessableEntity(c *gin.Context, errorMessage string) {
	Error(c, http.StatusUnprocessableEntity, errorMessage)
}

// TooManyRequests sends a 429 with the seconds until the window resets.
func TooManyRequests(c *gin.Context, retryAfter int) {
	c.JSON(http.StatusTooManyRequests, gin.H{
		"status":     http.StatusTooManyRequests,
		"message":    "Too many requests, please try again later.",
		"retryAfter": retryAfter,
	})
}

// InternalServerError sends a 500 Internal Server Error response.
func InternalServerError(c *gin.Context, errorMessage string) {
	Error(c, http.StatusInternalServerError, errorMessage)
}

// RespondError maps scheduling errors onto status codes. It reports false
// for errors it does not recognise so the caller can decide.
func RespondError(c *gin.Context, err error) bool {
	var (
		verr     *scheduling.ValidationError
		ferr     *scheduling.FormatError
		rerr     *scheduling.RangeError
		nf       *scheduling.NotFoundError
		conflict *scheduling.ConflictError
		policy   *scheduling.PolicyViolation
	)
	switch {
	case errors.As(err, &verr):
		ValidationFailed(c, verr.Fields)
	case errors.As(err, &ferr), errors.As(err, &rerr):
		BadRequest(c, err.Error())
	case errors.As(err, &nf):
		NotFound(c, nf.Error())
	case errors.As(err, &conflict):
		Conflict(c, conflict.Error())
	case errors.As(err, &policy):
		UnprocessableEntity(c, policy.Reason)
	default:
		return false
	}
	return true
}
