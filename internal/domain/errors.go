package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors. Callers wrap them with context and test with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	ErrNoArticlesFound          = errors.New("no articles found")
	ErrFetchFailed              = errors.New("no abstracts could be fetched")
	ErrCriticalParameterMissing = errors.New("critical parameter missing")
	ErrInvalidRate              = fmt.Errorf("%w: rate must be within [0, 100]", ErrInvalidInput)
	ErrInfeasible               = fmt.Errorf("%w: combined dropout and screen failure reach 100%%", ErrInvalidInput)
	ErrProjectNotFound          = fmt.Errorf("project %w", ErrNotFound)
	ErrDesignNotYetGenerated    = errors.New("design not yet generated")
	ErrNetworkFailure           = errors.New("network failure")
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeNotFound           = "NOT_FOUND"
	CodePreconditionFailed = "PRECONDITION_FAILED"
	CodeExternalAPI        = "EXTERNAL_API_ERROR"
	CodeDatabaseError      = "DATABASE_ERROR"
	CodeInternalServer     = "INTERNAL_SERVER_ERROR"
)

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ErrorCode maps an error chain onto a wire error code.
func ErrorCode(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrCriticalParameterMissing),
		errors.Is(err, ErrDesignNotYetGenerated):
		return CodePreconditionFailed
	case errors.Is(err, ErrNoArticlesFound),
		errors.Is(err, ErrFetchFailed),
		errors.Is(err, ErrNetworkFailure):
		return CodeExternalAPI
	default:
		return CodeInternalServer
	}
}

// HTTPStatus returns the HTTP status used for an error code.
func HTTPStatus(code string) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodePreconditionFailed:
		return http.StatusUnprocessableEntity
	case CodeExternalAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
