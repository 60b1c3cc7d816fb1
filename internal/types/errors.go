package types

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Handlers and adapters MUST use these constants instead
// of hardcoded strings; the prefix determines the HTTP status.
const (
	// Validation (400)
	ErrCodeValidationMissingField    ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidJSON     ErrorCode = "validation_invalid_json"
	ErrCodeValidationInvalidRequest  ErrorCode = "validation_invalid_request"
	ErrCodeValidationInvalidLat      ErrorCode = "validation_invalid_latitude"
	ErrCodeValidationInvalidLon      ErrorCode = "validation_invalid_longitude"
	ErrCodeValidationInvalidCoords   ErrorCode = "validation_invalid_coordinates"
	ErrCodeValidationInvalidDate     ErrorCode = "validation_invalid_date"
	ErrCodeValidationDateRange       ErrorCode = "validation_invalid_date_range"
	ErrCodeValidationInvalidLocation ErrorCode = "validation_invalid_location"
	ErrCodeValidationInvalidEmail    ErrorCode = "validation_invalid_email"
	ErrCodeValidationImageCount      ErrorCode = "validation_image_count"
	ErrCodeValidationInvalidImage    ErrorCode = "validation_invalid_image"
	ErrCodeValidationComparisonType  ErrorCode = "validation_invalid_comparison_type"

	// Parse (400)
	ErrCodeParseQuery       ErrorCode = "parse_query_failed"
	ErrCodeParseModelOutput ErrorCode = "parse_model_output_invalid"

	// Not Found (404)
	ErrCodeNotFoundLocation ErrorCode = "not_found_location"
	ErrCodeNotFoundImages   ErrorCode = "not_found_images"
	ErrCodeNotFoundNoData   ErrorCode = "not_found_no_data"

	// Timeout (408)
	ErrCodeTimeoutRequest  ErrorCode = "timeout_request"
	ErrCodeTimeoutUpstream ErrorCode = "timeout_upstream"

	// Upstream (429/503)
	ErrCodeUpstreamRateLimited   ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamUnavailable   ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamBadResponse   ErrorCode = "upstream_bad_response"
	ErrCodeUpstreamEmailProvider ErrorCode = "upstream_email_provider_unavailable"
	ErrCodeUpstreamAuthRejected  ErrorCode = "upstream_auth_rejected"

	// Configuration / Internal (500)
	ErrCodeConfigMissingCredential ErrorCode = "config_missing_credential"
	ErrCodeInternalUnexpected      ErrorCode = "internal_unexpected_error"

	ErrCodeEmailBlocked ErrorCode = "email_blocked"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"), strings.HasPrefix(s, "parse_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "timeout_"):
		return http.StatusRequestTimeout // 408
	case c == ErrCodeUpstreamRateLimited:
		return http.StatusTooManyRequests // 429
	case c == ErrCodeUpstreamAuthRejected:
		return http.StatusInternalServerError // 500: our credential, not the caller's
	case c == ErrCodeEmailBlocked:
		return http.StatusForbidden // 403
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusServiceUnavailable // 503
	case strings.HasPrefix(s, "config_"), strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the service.
// Detail is a short human-readable explanation rendered as the envelope's
// "details" string; Details carries structured context and takes precedence
// when both are set.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Detail  string         `json:"detail,omitempty"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	cp := *e
	cp.Details = merged
	return &cp
}

// WithDetail returns a copy of the error carrying a human-readable detail string.
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// ---------------------------------------------------------------------------
// Taxonomy constructors
// ---------------------------------------------------------------------------

// ValidationError reports malformed or missing input. No upstream call
// should be attempted after one is produced.
func ValidationError(code ErrorCode, message, detail string) *AppError {
	return &AppError{Code: code, Message: message, Detail: detail}
}

// NotFoundError reports that resolution or a legitimate search produced
// nothing. Suggestions are surfaced to the caller when non-empty.
func NotFoundError(code ErrorCode, message, detail string, suggestions []string) *AppError {
	e := &AppError{Code: code, Message: message, Detail: detail}
	if len(suggestions) > 0 {
		e.Details = map[string]any{
			"reason":      detail,
			"suggestions": suggestions,
		}
	}
	return e
}

// UpstreamError reports a failure of one external source.
func UpstreamError(source, message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeUpstreamUnavailable,
		Message: fmt.Sprintf("%s: %s", source, message),
		Err:     err,
	}
}

// ConfigurationError reports a missing credential for a required feature.
func ConfigurationError(credential, detail string) *AppError {
	return &AppError{
		Code:    ErrCodeConfigMissingCredential,
		Message: "Service configuration error",
		Detail:  detail,
		Details: map[string]any{"credential": credential, "reason": detail},
	}
}

// ParseError reports language-model output (or a query) that could not be
// turned into a structured intent.
func ParseError(message string, err error, suggestions []string) *AppError {
	e := &AppError{Code: ErrCodeParseQuery, Message: message, Err: err}
	details := map[string]any{}
	if err != nil {
		details["reason"] = err.Error()
	}
	if len(suggestions) > 0 {
		details["suggestions"] = suggestions
	}
	if len(details) > 0 {
		e.Details = details
	}
	return e
}

// NoDataError reports that every requested source failed, so synthesis has
// nothing to work with.
func NoDataError(detail string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFoundNoData,
		Message: "No data available",
		Detail:  detail,
	}
}

// CodeOf classifies any error into an ErrorCode. AppErrors keep their own
// code; context deadlines become timeouts; everything else is internal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeTimeoutUpstream
	}
	if errors.Is(err, context.Canceled) {
		return ErrCodeTimeoutRequest
	}
	return ErrCodeInternalUnexpected
}

// IsCode reports whether err is (or wraps) an AppError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
