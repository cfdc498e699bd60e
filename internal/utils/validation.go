package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"hospital-app-server/internal/scheduling"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterValidations(v)
	}
}

// RegisterValidations adds the custom tags used by request DTOs and reports
// field names by their json tag.
func RegisterValidations(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := scheduling.ParseTime(fl.Field().String())
		return err == nil
	})
}

// Validate runs the binding validator over s.
func Validate(s interface{}) error {
	return binding.Validator.ValidateStruct(s)
}

// FieldErrors converts validator and JSON errors into field-level details.
func FieldErrors(err error) []scheduling.FieldError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]scheduling.FieldError, 0, len(verrs))
		for _, e := range verrs {
			out = append(out, scheduling.FieldError{Field: fieldPath(e.Namespace()), Message: message(e)})
		}
		return out
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return []scheduling.FieldError{{Field: typeErr.Field, Message: "must be a " + typeErr.Type.String()}}
	}
	return []scheduling.FieldError{{Field: "body", Message: err.Error()}}
}

// fieldPath drops the struct name prefix: "createAppointmentRequest.timeSlot.start" -> "timeSlot.start".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "hhmm":
		return "must be a time in HH:MM format"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid id"
	case "oneof":
		return "must be one of " + e.Param()
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "gtfield":
		return "must be after " + e.Param()
	default:
		return fmt.Sprintf("failed %s validation", e.Tag())
	}
}

// BindAndValidate binds the request body to a struct and validates it.
// If validation fails, it sends a BadRequest response and returns false.
func BindAndValidate(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		ValidationFailed(c, FieldErrors(err))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func BindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		ValidationFailed(c, FieldErrors(err))
		return false
	}
	return true
}
