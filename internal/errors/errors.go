// Package errors defines the service error taxonomy shared by services,
// stores, and the HTTP layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error kind.
type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeDuplicateEmail     Code = "DUPLICATE_EMAIL"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeNotFound           Code = "NOT_FOUND"
	CodeInvalidTransition  Code = "INVALID_TRANSITION"
	CodeStorageFault       Code = "STORAGE_FAULT"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeInvalidToken       Code = "INVALID_TOKEN"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal           Code = "INTERNAL_ERROR"
)

// ServiceError carries a taxonomy code, a human-readable message, the HTTP
// status the API layer should answer with, and optional structured details.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetails attaches a key/value pair and returns the error for chaining.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// GetServiceError extracts a *ServiceError from an error chain, or nil.
func GetServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code Code) bool {
	svcErr := GetServiceError(err)
	return svcErr != nil && svcErr.Code == code
}

// Validation flags malformed or missing input. The caller must correct and
// retry.
func Validation(message string) *ServiceError {
	return &ServiceError{Code: CodeValidation, Message: message, HTTPStatus: http.StatusBadRequest}
}

// DuplicateEmail flags a registration conflict on an existing email.
func DuplicateEmail(email string) *ServiceError {
	return (&ServiceError{
		Code:       CodeDuplicateEmail,
		Message:    "an account with this email already exists",
		HTTPStatus: http.StatusBadRequest,
	}).WithDetails("email", email)
}

// InvalidCredentials flags a failed login. The message never distinguishes
// unknown email from password mismatch.
func InvalidCredentials() *ServiceError {
	return &ServiceError{
		Code:       CodeInvalidCredentials,
		Message:    "invalid email or password",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NotFound flags an unknown entity id.
func NotFound(entity, id string) *ServiceError {
	return (&ServiceError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
	}).WithDetails("id", id)
}

// InvalidTransition flags a state-machine guard violation. Expected under
// races; the caller should re-read current state.
func InvalidTransition(message string) *ServiceError {
	return &ServiceError{Code: CodeInvalidTransition, Message: message, HTTPStatus: http.StatusBadRequest}
}

// StorageFault wraps a transient infrastructure failure. Safe to retry with
// backoff on the caller's side; nothing retries inside the core.
func StorageFault(err error) *ServiceError {
	return &ServiceError{
		Code:       CodeStorageFault,
		Message:    "storage operation failed",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// Unauthorized flags a missing or unresolvable credential.
func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "authentication required"
	}
	return &ServiceError{Code: CodeUnauthorized, Message: message, HTTPStatus: http.StatusUnauthorized}
}

// Forbidden flags an authenticated caller acting outside its role or
// ownership.
func Forbidden(message string) *ServiceError {
	return &ServiceError{Code: CodeForbidden, Message: message, HTTPStatus: http.StatusForbidden}
}

// InvalidToken flags a credential that failed verification.
func InvalidToken(err error) *ServiceError {
	return &ServiceError{
		Code:       CodeInvalidToken,
		Message:    "invalid or expired token",
		HTTPStatus: http.StatusUnauthorized,
		Err:        err,
	}
}

// RateLimitExceeded flags a throttled caller.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return (&ServiceError{
		Code:       CodeRateLimitExceeded,
		Message:    "rate limit exceeded",
		HTTPStatus: http.StatusTooManyRequests,
	}).WithDetails("limit", limit).WithDetails("window", window)
}

// Internal wraps an unexpected failure.
func Internal(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
