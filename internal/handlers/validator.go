package handlers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/memeet/scheduler/internal/models"
	"github.com/memeet/scheduler/pkg/response"
)

// RegisterValidators adds the scheduler's custom tags to Gin's validator.
// It must run before any route binds a request.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	if err := v.RegisterValidation("iso_date", isoDate); err != nil {
		return err
	}
	return v.RegisterValidation("user_role", userRole)
}

func isoDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(models.DateLayout, fl.Field().String())
	return err == nil
}

func userRole(fl validator.FieldLevel) bool {
	return models.IsValidRole(fl.Field().String())
}

// bindError turns a binding failure into a ValidationError naming the first
// offending field.
func bindError(err error) *response.AppError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return response.NewBadRequest("invalid request body")
	}

	fe := verrs[0]
	field := toSnake(fe.Field())
	switch fe.Tag() {
	case "required":
		return response.NewBadRequest(field + " is required")
	case "min":
		return response.NewBadRequest(fmt.Sprintf("%s must be at least %s", field, fe.Param()))
	case "max":
		return response.NewBadRequest(fmt.Sprintf("%s must be at most %s", field, fe.Param()))
	case "email":
		return response.NewBadRequest(field + " must be a valid email")
	case "oneof":
		return response.NewBadRequest(fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
	case "iso_date":
		return response.NewBadRequest(field + " must be a YYYY-MM-DD date")
	case "user_role":
		return response.NewBadRequest(field + " must be freelancer or client")
	}
	return response.NewBadRequest(field + " is invalid")
}

// toSnake maps a Go field name such as StartTime to start_time.
func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && (name[i-1] < 'A' || name[i-1] > 'Z') {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
