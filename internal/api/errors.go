package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/geox/judge/internal/evidence"
	"github.com/geox/judge/internal/governance"
	"github.com/geox/judge/internal/judge"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorCode represents error codes used in API responses
type ErrorCode string

const (
	// ErrorCodeInvalidRequest represents invalid request parameters
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	// ErrorCodeNotFound represents a not found error
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrorCodeMethodNotAllowed represents a wrong HTTP method
	ErrorCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"

	// ErrorCodeInternalError represents an internal server error
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"

	// ErrorCodeConfigInvalid represents a malformed SSOT or effective config
	ErrorCodeConfigInvalid ErrorCode = "CONFIG_INVALID"

	// ErrorCodeEvidenceUnavailable represents a failed evidence read
	ErrorCodeEvidenceUnavailable ErrorCode = "EVIDENCE_UNAVAILABLE"
)

// APIError represents an API error with status code and message
type APIError struct {
	Code       ErrorCode
	StatusCode int
	Message    string
}

// NewAPIError creates a new API error
func NewAPIError(code ErrorCode, statusCode int, message string) *APIError {
	return &APIError{
		Code:       code,
		StatusCode: statusCode,
		Message:    message,
	}
}

// Error returns the error message
func (e *APIError) Error() string {
	return e.Message
}

// GetResponse returns the error response
func (e *APIError) GetResponse() ErrorResponse {
	return ErrorResponse{
		Error:   string(e.Code),
		Message: e.Message,
	}
}

// GetStatusCode returns the HTTP status code
func (e *APIError) GetStatusCode() int {
	return e.StatusCode
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string, args ...interface{}) *APIError {
	return NewAPIError(
		ErrorCodeInvalidRequest,
		http.StatusBadRequest,
		fmt.Sprintf(message, args...),
	)
}

// NewInternalServerError creates an internal server error
func NewInternalServerError(message string, args ...interface{}) *APIError {
	return NewAPIError(
		ErrorCodeInternalError,
		http.StatusInternalServerError,
		fmt.Sprintf(message, args...),
	)
}

// ValidationError represents a validation error
type ValidationError struct {
	message string
}

// NewValidationError creates a new validation error
func NewValidationError(message string, args ...interface{}) *ValidationError {
	return &ValidationError{
		message: fmt.Sprintf(message, args...),
	}
}

// Error returns the error message
func (ve *ValidationError) Error() string {
	return ve.message
}

// FromRunError maps a pipeline or governor failure onto an APIError. Patch
// rejections are not handled here; they have their own response body.
func FromRunError(err error) *APIError {
	var apiErr *APIError
	var validation *ValidationError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &validation):
		return NewInvalidRequestError("%s", validation.Error())
	case errors.Is(err, judge.ErrInvalidInput), errors.Is(err, evidence.ErrMissingAnchor):
		return NewInvalidRequestError("%s", err.Error())
	case errors.Is(err, governance.ErrConfigInvalid):
		return NewAPIError(ErrorCodeConfigInvalid, http.StatusInternalServerError, err.Error())
	case errors.Is(err, judge.ErrEvidenceRead):
		return NewAPIError(ErrorCodeEvidenceUnavailable, http.StatusBadGateway, err.Error())
	}
	return NewInternalServerError("%s", err.Error())
}
