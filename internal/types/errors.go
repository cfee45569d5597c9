package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// All callers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationMissingField      ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidStatus     ErrorCode = "validation_invalid_status"
	ErrCodeValidationInvalidTransition ErrorCode = "validation_invalid_transition"
	ErrCodeValidationSelfApproval      ErrorCode = "validation_self_approval"
	ErrCodeValidationNoAreas           ErrorCode = "validation_no_areas"
	ErrCodeValidationMessageType       ErrorCode = "validation_unsupported_message_type"

	// Not Found (404)
	ErrCodeNotFoundBroadcast      ErrorCode = "not_found_broadcast"
	ErrCodeNotFoundBroadcastEvent ErrorCode = "not_found_broadcast_event"
	ErrCodeNotFoundService        ErrorCode = "not_found_service"

	// Conflict (409)
	ErrCodeConflictConcurrent ErrorCode = "conflict_concurrent_modification"

	// Integrity (fatal for a dispatch unit, never retried automatically)
	ErrCodeIntegrityUnauthorised         ErrorCode = "integrity_unauthorised"
	ErrCodeIntegrityAlreadyResolved      ErrorCode = "integrity_already_resolved"
	ErrCodeIntegrityExpired              ErrorCode = "integrity_expired"
	ErrCodeIntegrityPriorEventNotStarted ErrorCode = "integrity_prior_event_not_started"
	ErrCodeIntegrityPriorEventIncomplete ErrorCode = "integrity_prior_event_incomplete"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB          ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamCBC         ErrorCode = "upstream_cbc_unavailable"
	ErrCodeUpstreamSupport     ErrorCode = "upstream_support_unavailable"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict // 409
	case strings.HasPrefix(s, "integrity_"):
		return http.StatusUnprocessableEntity // 422
	case s == string(ErrCodeUpstreamRateLimited):
		return http.StatusServiceUnavailable // 503
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}

// IsIntegrity reports whether the code belongs to the dispatch integrity family.
func (c ErrorCode) IsIntegrity() bool {
	return strings.HasPrefix(string(c), "integrity_")
}

// AppError is the standard application error type used throughout the service.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
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
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
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

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
