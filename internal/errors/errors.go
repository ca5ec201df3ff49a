package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error.
type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound          ErrorType = "NOT_FOUND"
	ErrorTypeConflict          ErrorType = "CONFLICT"
	ErrorTypeInternal          ErrorType = "INTERNAL_ERROR"
	ErrorTypeSourceUnavailable ErrorType = "SOURCE_UNAVAILABLE"
	ErrorTypeNoAnalyzableTrack ErrorType = "NO_ANALYZABLE_TRACK"
	ErrorTypeMetadataInvalid   ErrorType = "METADATA_INVALID"
	ErrorTypeIngestionFailed   ErrorType = "INGESTION_FAILED"
	ErrorTypeCancelled         ErrorType = "CANCELLED"
)

// AppError represents an application error with additional context.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCode adds an error code.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// New creates a new AppError.
func New(errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an existing error.
func Wrap(err error, errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Common error constructors.

// NewValidationError creates a validation error.
func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message, http.StatusBadRequest)
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(resource string) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// NewConflictError creates a conflict error.
func NewConflictError(message string) *AppError {
	return New(ErrorTypeConflict, message, http.StatusConflict)
}

// NewInternalError creates an internal server error.
func NewInternalError(message string) *AppError {
	return New(ErrorTypeInternal, message, http.StatusInternalServerError)
}

// WrapInternalError wraps an error as internal server error.
func WrapInternalError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeInternal, message, http.StatusInternalServerError)
}

// Analysis error constructors.

// NewSourceUnavailableError indicates the ingestion collaborator could
// not be opened or read.
func NewSourceUnavailableError(detail string) *AppError {
	return New(ErrorTypeSourceUnavailable, detail, http.StatusUnprocessableEntity)
}

// WrapSourceUnavailableError wraps an underlying open/read failure.
func WrapSourceUnavailableError(err error, detail string) *AppError {
	return Wrap(err, ErrorTypeSourceUnavailable, detail, http.StatusUnprocessableEntity)
}

// NewNoAnalyzableTrackError indicates the source has no video
// elementary stream.
func NewNoAnalyzableTrackError(name string) *AppError {
	return New(ErrorTypeNoAnalyzableTrack,
		fmt.Sprintf("%s contains no analyzable video track", name), http.StatusUnprocessableEntity)
}

// NewMetadataInvalidError indicates a non-finite or non-positive duration.
func NewMetadataInvalidError(message string) *AppError {
	return New(ErrorTypeMetadataInvalid, message, http.StatusUnprocessableEntity)
}

// WrapIngestionError wraps a mid-stream collaborator failure. The
// analysis is terminal after this; retry is a new Start, never automatic.
func WrapIngestionError(err error, detail string) *AppError {
	return Wrap(err, ErrorTypeIngestionFailed, detail, http.StatusUnprocessableEntity)
}

// NewCancelledError reports cancellation observed during ingestion.
// Cancellation surfaces as a failure variant rather than a silent reset
// so observers can distinguish "nothing happened" from "I cancelled".
func NewCancelledError() *AppError {
	return New(ErrorTypeCancelled, "cancelled", http.StatusConflict)
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from an error.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCancelled reports whether the error chain carries the cancellation kind.
func IsCancelled(err error) bool {
	if appErr, ok := GetAppError(err); ok {
		return appErr.Type == ErrorTypeCancelled
	}
	return false
}
