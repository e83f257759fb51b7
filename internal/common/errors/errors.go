// Package errors provides standardized error handling for the notification pipeline.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	ErrCodeNotificationNotFound ErrorCode = "NOTIFICATION_NOT_FOUND"
	ErrCodeStoreUnavailable     ErrorCode = "STORE_UNAVAILABLE"

	ErrCodeIdempotencyConflict ErrorCode = "IDEMPOTENCY_CONFLICT"

	ErrCodePublishFailed ErrorCode = "PUBLISH_FAILED"

	ErrCodeInvalidStatusTransition ErrorCode = "INVALID_STATUS_TRANSITION"
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

// AsStandard extracts a *StandardError from an error chain, if present.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the error code carried by err, or empty when err is not
// a StandardError.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr.Code
	}
	return ""
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationFailedError creates a non-retryable input validation error.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRateLimitExceededError creates a throttling error the caller should back off from.
func NewRateLimitExceededError(identifier string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRateLimitExceeded,
		Message:   "Rate limit exceeded",
		Details:   fmt.Sprintf("identifier: %s", identifier),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationNotFoundError creates a non-retryable lookup error.
func NewNotificationNotFoundError(notificationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationNotFound,
		Message:   "Notification not found",
		Details:   fmt.Sprintf("notificationId: %s", notificationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreUnavailableError creates a retryable backing-resource error. A
// resource failure is never reported as success.
func NewStoreUnavailableError(resource string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreUnavailable,
		Message:   "Backing store unavailable",
		Details:   fmt.Sprintf("resource: %s, error: %s", resource, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewIdempotencyConflictError signals that another caller holds the
// reservation for this request_id but has not committed yet.
func NewIdempotencyConflictError(requestID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIdempotencyConflict,
		Message:   "Request is already being processed",
		Details:   fmt.Sprintf("requestId: %s", requestID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPublishFailedError creates a retryable broker publish error.
func NewPublishFailedError(notificationID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePublishFailed,
		Message:   "Failed to publish notification to broker",
		Details:   fmt.Sprintf("notificationId: %s, error: %s", notificationID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidStatusTransitionError creates a non-retryable terminal-state
// conflict error.
func NewInvalidStatusTransitionError(notificationID, from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidStatusTransition,
		Message:   "Invalid status transition",
		Details:   fmt.Sprintf("notificationId: %s, from: %s, to: %s", notificationID, from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
