// Package errors provides standardized error handling for the voicebot
// request pipeline.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Request-level rejection, raised before any NLU work.
	ErrCodeInputTooLong ErrorCode = "INPUT_TOO_LONG"

	// Required entities missing or invalid for the detected intent.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// CRM backend call failed, whether reported by the backend or raised
	// by the call layer.
	ErrCodeCRM ErrorCode = "CRM_ERROR"

	ErrCodeLLMExtractionFailed ErrorCode = "LLM_EXTRACTION_FAILED"
	ErrCodeLLMTimeout          ErrorCode = "LLM_TIMEOUT"

	ErrCodeAnalyticsWriteFailed ErrorCode = "ANALYTICS_WRITE_FAILED"
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

// ==========================
// 2. Error Constructors
// ==========================

// NewInputTooLongError creates a non-retryable request rejection.
func NewInputTooLongError(maxLen int) *StandardError {
	return &StandardError{
		Code:      ErrCodeInputTooLong,
		Message:   fmt.Sprintf("Transcript too long (max %d chars)", maxLen),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError creates a non-retryable entity validation error.
func NewValidationError(missingFields []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   "Required entities missing or invalid.",
		Details:   strings.Join(missingFields, ", "),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCRMError creates a retryable CRM backend error.
func NewCRMError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCRM,
		Message:   "CRM backend call failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMExtractionFailedError creates a retryable LLM extraction error.
func NewLLMExtractionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMExtractionFailed,
		Message:   "LLM extraction API error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMTimeoutError creates a retryable LLM timeout error.
func NewLLMTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMTimeout,
		Message:   "LLM extraction timeout",
		Details:   "API call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAnalyticsWriteFailedError creates a non-retryable analytics error.
// Analytics is best-effort: this error is logged, never surfaced.
func NewAnalyticsWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAnalyticsWriteFailed,
		Message:   "Analytics record could not be written",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCRM, ErrCodeLLMExtractionFailed:
		return 2
	case ErrCodeLLMTimeout:
		return 1
	default:
		return 0 // Validation and request-level errors: no retry
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CRM"):
		return "CRM"
	case strings.Contains(codeStr, "LLM"):
		return "AI"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "INPUT"):
		return "VALIDATION"
	case strings.Contains(codeStr, "ANALYTICS"):
		return "ANALYTICS"
	default:
		return "OTHER"
	}
}
