package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a search produced no articles.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrServiceUnavailable indicates that a collaborator is not configured or reachable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrUpstream indicates that an upstream service failed to answer usefully.
	ErrUpstream = errors.New("upstream failure")

	// ErrMalformedDocument indicates that an upstream document could not be parsed.
	ErrMalformedDocument = errors.New("malformed document")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// ExternalAPIError provides details about an upstream HTTP error response.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the cause if present, otherwise ErrUpstream.
func (e *ExternalAPIError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrUpstream
}

// MalformedDocumentError reports a document that could not be decoded.
type MalformedDocumentError struct {
	Format string
	Cause  error
}

// Error implements the error interface.
func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed %s document: %v", e.Format, e.Cause)
}

// Is matches ErrMalformedDocument.
func (e *MalformedDocumentError) Is(target error) bool {
	return target == ErrMalformedDocument
}

// Unwrap returns the decoder error.
func (e *MalformedDocumentError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// NewMalformedDocumentError creates a new MalformedDocumentError.
func NewMalformedDocumentError(format string, cause error) *MalformedDocumentError {
	return &MalformedDocumentError{Format: format, Cause: cause}
}
