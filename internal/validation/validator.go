// Package validation checks domain documents before they reach the store, using validator/v10.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator configured for our domain.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "" {
			return fld.Name
		}
		for i := range len(name) {
			if name[i] == ',' {
				return name[:i]
			}
		}
		return name
	})

	return &Validator{v: v}
}

// Validate validates a struct and returns a BAD_USER_INPUT error
// whose invalidArgs lists the failing fields by json name.
func (v *Validator) Validate(s any) error {
	return v.ValidateAs(s, "validation failed", nil)
}

// ValidateAs is Validate with a client-facing message and a mapping from
// document field names to the API argument names the caller exposes.
// Fields missing from argNames are reported under their json name.
func (v *Validator) ValidateAs(s any, message string, argNames map[string]string) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string, len(validationErrs))
	args := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		// Elements of a slice are reported as their field: genres[0] is genres.
		field, _, _ := strings.Cut(e.Field(), "[")
		if mapped, ok := argNames[field]; ok {
			field = mapped
		}
		fieldErrors[field] = friendlyMessage(e)
		if !slices.Contains(args, field) {
			args = append(args, field)
		}
	}
	slices.Sort(args)

	return domainerrors.ValidationWithDetails(message, fieldErrors).WithInvalidArgs(args...)
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", e.Param())
		}
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	default:
		return "is invalid"
	}
}
