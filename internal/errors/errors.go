// Package errors defines the gateway error taxonomy.
// Every caller-visible failure is a ServiceError carrying a stable code,
// a human-readable message and an HTTP-equivalent status. Unexpected
// failures are wrapped as Internal and never leak detail to the caller.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error category in the gateway taxonomy.
type Code string

const (
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeRateLimitExceeded Code = "RATE_LIMIT_EXCEEDED"
	CodeOperationBlocked  Code = "DANGEROUS_OPERATION_BLOCKED"
	CodeSchemaValidation  Code = "SCHEMA_VALIDATION_FAILED"
	CodeUnknownTarget     Code = "UNKNOWN_TARGET"
	CodeDownstream        Code = "DOWNSTREAM_ERROR"
	CodeInternal          Code = "INTERNAL_ERROR"
)

// ServiceError is the error type surfaced by the gateway pipeline.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetails attaches a key/value detail pair and returns the error.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Unauthorized indicates the caller's credential was not recognized.
func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "caller not recognized"
	}
	return &ServiceError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// RateLimitExceeded indicates the caller exhausted its per-window quota.
// The per-minute limit is included in the message so callers can back off.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return &ServiceError{
		Code:       CodeRateLimitExceeded,
		Message:    fmt.Sprintf("rate limit exceeded: %d requests per %s", limit, window),
		HTTPStatus: http.StatusTooManyRequests,
		Details:    map[string]interface{}{"limit": limit, "window": window},
	}
}

// DangerousOperationBlocked indicates the operation matched a destructive
// pattern in the rule table.
func DangerousOperationBlocked(pattern, description string) *ServiceError {
	return &ServiceError{
		Code:       CodeOperationBlocked,
		Message:    fmt.Sprintf("operation blocked: %s", description),
		HTTPStatus: http.StatusForbidden,
		Details:    map[string]interface{}{"blockedPattern": pattern, "rule": description},
	}
}

// SchemaValidationFailed indicates the delegated validator rejected the
// operation. autoFixTriggered reports whether remediation was requested.
func SchemaValidationFailed(reason string, autoFixTriggered bool) *ServiceError {
	if reason == "" {
		reason = "schema validation failed"
	}
	return &ServiceError{
		Code:       CodeSchemaValidation,
		Message:    reason,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]interface{}{"autoFixTriggered": autoFixTriggered},
	}
}

// UnknownTarget indicates no handler is registered for the target.
func UnknownTarget(target string) *ServiceError {
	return &ServiceError{
		Code:       CodeUnknownTarget,
		Message:    fmt.Sprintf("unknown target: %s", target),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]interface{}{"target": target},
	}
}

// Downstream wraps an error reported by a downstream handler. The handler's
// message is passed through verbatim; the gateway does not reinterpret it.
func Downstream(target string, err error) *ServiceError {
	return &ServiceError{
		Code:       CodeDownstream,
		Message:    err.Error(),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]interface{}{"target": target},
		Err:        err,
	}
}

// Internal wraps an unexpected failure. The cause is kept for logging but
// the caller only ever sees the generic message.
func Internal(message string, err error) *ServiceError {
	if message == "" {
		message = "internal error"
	}
	return &ServiceError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// GetServiceError returns the ServiceError in err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// IsCode reports whether err is a ServiceError with the given code.
func IsCode(err error, code Code) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == code
}

// IsUnauthorized reports whether err is an Unauthorized error.
func IsUnauthorized(err error) bool { return IsCode(err, CodeUnauthorized) }

// IsRateLimited reports whether err is a RateLimitExceeded error.
func IsRateLimited(err error) bool { return IsCode(err, CodeRateLimitExceeded) }

// IsOperationBlocked reports whether err is a DangerousOperationBlocked error.
func IsOperationBlocked(err error) bool { return IsCode(err, CodeOperationBlocked) }

// IsUnknownTarget reports whether err is an UnknownTarget error.
func IsUnknownTarget(err error) bool { return IsCode(err, CodeUnknownTarget) }
