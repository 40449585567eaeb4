/*
validate.go - Request validation

PURPOSE:
  One shared go-playground/validator instance plus a helper that turns
  validator errors into the field-level shape of ErrorResponse. Structural
  validation (required, ranges, closed sets) lives in struct tags; business
  validation (normalization, sign policy, caps) lives in the inventory
  package.
*/
package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldError is one failed validation, in client terms.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// validateStruct runs tag validation and flattens the result.
func validateStruct(v any) []FieldError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "request", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: fieldMessage(fe),
		})
	}
	return out
}

// fieldPath strips the top-level struct name: "MovementRequest.Qty" -> "Qty".
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min":
		return fmt.Sprintf("must have at least %s items", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
