package middleware

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"purchasing/internal/core/apperror"
)

// SetupValidator makes binding errors name fields by their JSON tag.
func SetupValidator() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})
	}
}

// BindingError converts a gin binding failure into a VALIDATION_ERROR.
// Field-level failures are listed under details.fields.
func BindingError(message string, err error) *apperror.AppError {
	appErr := apperror.NewValidation(message)

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return appErr.WithDetail("error", err.Error())
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = validationMessage(fe)
	}
	return appErr.WithDetail("fields", fields)
}

// fieldPath drops the root struct name: "createRequest.items[0].quantity" -> "items[0].quantity".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if fe.Kind() == reflect.String {
			return "Must be at least " + fe.Param() + " characters"
		}
		return "Must contain at least " + fe.Param() + " entries"
	case "max":
		return "Must be at most " + fe.Param() + " characters"
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + fe.Param()
	case "dive":
		return "Invalid entry"
	default:
		return "Invalid value"
	}
}
