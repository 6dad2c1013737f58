package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// rateRegexp matches a queue limit such as "10M", "512k/2M" or "1.5M/1.5M"
var rateRegexp = regexp.MustCompile(`^\d+(\.\d+)?[kKMG]?(/\d+(\.\d+)?[kKMG]?)?$`)

// FieldError is one failed field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors collects every failed field of a struct
type Errors []FieldError

// Error implements the error interface
func (ve Errors) Error() string {
	parts := make([]string, 0, len(ve))
	for _, e := range ve {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validator validates structs
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	v := validator.New()

	if err := v.RegisterValidation("rate", validateRate); err != nil {
		panic(err)
	}

	// report JSON field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: v}
}

// Validate validates a struct
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(Errors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

// ValidRate reports whether s is a queue limit
func ValidRate(s string) bool {
	return rateRegexp.MatchString(s)
}

func validateRate(fl validator.FieldLevel) bool {
	return ValidRate(fl.Field().String())
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "min":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "ip":
		return "must be a valid IP address"
	case "hostname_rfc1123|ip":
		return "must be a hostname or IP address"
	case "rate":
		return "must be a rate such as 10M or 10M/2M"
	default:
		return fmt.Sprintf("validation failed: %s", fe.Tag())
	}
}
