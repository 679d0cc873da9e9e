package validate

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jd52dev/excursion/internal/domain"
)

const maxBodyBytes = 1 << 20

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	// Report json names so meta keys match the request body.
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return val
}

func DecodeJSON(r *http.Request, dst any) error {
	return render.DecodeJSON(http.MaxBytesReader(nil, r.Body, maxBodyBytes), dst)
}

// Bind decodes the body into dst and runs its validate tags. Every failure
// comes back as a validation_error.
func Bind(r *http.Request, dst any) error {
	if err := DecodeJSON(r, dst); err != nil {
		return domain.ErrValidationMeta("invalid json body", map[string]string{
			"body": "malformed JSON or invalid fields",
		})
	}
	return Struct(dst)
}

func Struct(dst any) error {
	err := v.Struct(dst)
	if err == nil {
		return nil
	}
	ves, ok := err.(validator.ValidationErrors)
	if !ok {
		return domain.ErrValidation(err.Error())
	}
	meta := make(map[string]string, len(ves))
	for _, fe := range ves {
		meta[fe.Field()] = fieldMessage(fe)
	}
	return domain.ErrValidationMeta("invalid request body", meta)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "url":
		return "must be a valid url"
	default:
		return "is invalid"
	}
}

func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
