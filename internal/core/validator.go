package core

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Beez1/bounceinsights/internal/types"
)

// dataURIPattern matches the inline base64 images accepted by imageref.
var dataURIPattern = regexp.MustCompile(`^data:image/(jpeg|jpg|png|gif|webp);base64,`)

// ValidationError describes one failed field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult collects every failed field of a request.
type ValidationResult struct {
	Errors []ValidationError `json:"errors,omitempty"`
}

// IsValid reports whether no field failed.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator wraps go-playground/validator with the request rules of the
// API. Field names in errors are the JSON names.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator with the isodate and imageref rules
// registered. Endpoint vocabularies (comparison types, time ranges) are
// added with RegisterStringRule by the handlers that own them.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := types.ParseDate(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("imageref", func(fl validator.FieldLevel) bool {
		return IsImageRef(fl.Field().String())
	})

	return &Validator{validate: v, logger: logger}
}

// RegisterStringRule adds a tag whose check is a predicate over the field's
// string value.
func (v *Validator) RegisterStringRule(tag string, fn func(string) bool) error {
	return v.validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return fn(fl.Field().String())
	})
}

// IsImageRef reports whether s is an http(s) URL with a host or a supported
// base64 image data URI.
func IsImageRef(s string) bool {
	if dataURIPattern.MatchString(s) {
		return true
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ValidateStruct validates s and returns an AppError coded after the first
// failing field, with every failure listed under "validation_errors".
func (v *Validator) ValidateStruct(s any) error {
	res := v.Check(s)
	if res.IsValid() {
		return nil
	}
	first := res.Errors[0]
	return &types.AppError{
		Code:    types.ErrorCode(first.Code),
		Message: "Invalid input",
		Detail:  first.Message,
		Details: map[string]any{"validation_errors": res.Errors},
	}
}

// Check validates s and reports each field failure. A value that cannot be
// validated at all is logged and reported as a single request failure.
func (v *Validator) Check(s any) ValidationResult {
	err := v.validate.Struct(s)
	if err == nil {
		return ValidationResult{}
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.logger.Error("struct validation failed", "error", err)
		return ValidationResult{Errors: []ValidationError{{
			Code:    string(types.ErrCodeValidationInvalidRequest),
			Message: "request could not be validated",
		}}}
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fieldPath(fe),
			Code:    string(tagToErrorCode(fe.Tag())),
			Message: fieldMessage(fe),
		})
	}
	return ValidationResult{Errors: out}
}

// fieldPath strips the root struct name from the namespace, so
// "CompareRequest.focusAreas[1]" becomes "focusAreas[1]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func tagToErrorCode(tag string) types.ErrorCode {
	switch tag {
	case "required", "required_with", "required_without":
		return types.ErrCodeValidationMissingField
	case "email":
		return types.ErrCodeValidationInvalidEmail
	case "latitude":
		return types.ErrCodeValidationInvalidLat
	case "longitude":
		return types.ErrCodeValidationInvalidLon
	case "isodate", "datetime":
		return types.ErrCodeValidationInvalidDate
	case "imageref":
		return types.ErrCodeValidationInvalidImage
	case "comparison":
		return types.ErrCodeValidationComparisonType
	default:
		return types.ErrCodeValidationInvalidRequest
	}
}

func fieldMessage(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "isodate", "datetime":
		return field + " must be a date in YYYY-MM-DD format"
	case "imageref":
		return field + " must be an http(s) URL or a base64 image data URI"
	case "comparison":
		return field + " must be one of general, satellite, weather, temporal"
	case "timerange":
		return field + " must be one of week, month, year, decade"
	case "datatype":
		return field + " must be one of satellite, weather, apod, analysis"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed the %s rule", field, fe.Tag())
	}
}
