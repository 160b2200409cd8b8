// Package errors provides the standardized error taxonomy for the assistant.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Collaborator failures. These propagate to the caller and are translated
	// into a uniform user-facing failure message.
	ErrCodeUpstreamUnavailable    ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrCodeInvalidDecisionOutput  ErrorCode = "INVALID_DECISION_OUTPUT"
	ErrCodeQueryExecutionFailed   ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeSearchQueryFailed      ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeExtractionFailed       ErrorCode = "EXTRACTION_FAILED"
	ErrCodeInvalidExtractorOutput ErrorCode = "INVALID_EXTRACTOR_OUTPUT"
	ErrCodeSessionStoreFailed     ErrorCode = "SESSION_STORE_FAILED"

	// Ingestion-side failures.
	ErrCodeBulkInsertFailed ErrorCode = "BULK_INSERT_FAILED"
	ErrCodeBulkDeleteFailed ErrorCode = "BULK_DELETE_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewUpstreamUnavailableError creates a retryable external collaborator error.
// Retry, if any, is the client's responsibility; the engine never retries.
func NewUpstreamUnavailableError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamUnavailable,
		Message:   fmt.Sprintf("External service '%s' unavailable", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidDecisionOutputError creates a non-retryable classifier error.
// The turn fails closed rather than guessing a branch.
func NewInvalidDecisionOutputError(token string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidDecisionOutput,
		Message:   "Intent classifier returned an unrecognized decision token",
		Details:   fmt.Sprintf("token: %q", token),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable structured-store error.
func NewQueryExecutionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Structured store query execution error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable document-store error.
func NewSearchQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Document store search error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewExtractionFailedError creates a retryable error for a failed call to the
// extraction model.
func NewExtractionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionFailed,
		Message:   "Extraction model call failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidExtractorOutputError creates a non-retryable extractor schema error.
func NewInvalidExtractorOutputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidExtractorOutput,
		Message:   "Extractor output failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// IsRetryable reports whether err is a retryable StandardError.
func IsRetryable(err error) bool {
	if se, ok := err.(*StandardError); ok {
		return se.Retryable
	}
	return false
}

// CodeOf returns the ErrorCode of a StandardError, or empty for other errors.
func CodeOf(err error) ErrorCode {
	if se, ok := err.(*StandardError); ok {
		return se.Code
	}
	return ""
}
