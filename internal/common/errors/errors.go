// Package errors provides the credit workflow error taxonomy and its
// conversion to BPMN errors for the Zeebe engine.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidTransition        ErrorCode = "INVALID_TRANSITION"
	ErrCodeConcurrencyConflict      ErrorCode = "CONCURRENCY_CONFLICT"
	ErrCodeMissingCoreEntity        ErrorCode = "MISSING_CORE_ENTITY"
	ErrCodePartialAggregation       ErrorCode = "PARTIAL_AGGREGATION"
	ErrCodeCancelled                ErrorCode = "CANCELLED"
	ErrCodeSolicitudNotFound        ErrorCode = "SOLICITUD_NOT_FOUND"
	ErrCodePermissionDenied         ErrorCode = "PERMISSION_DENIED"
	ErrCodeInputValidationFailed    ErrorCode = "INPUT_VALIDATION_FAILED"
	ErrCodeRepositoryFailed         ErrorCode = "REPOSITORY_FAILED"
	ErrCodeNotificationSendFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeDocumentGenerationFailed ErrorCode = "DOCUMENT_GENERATION_FAILED"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error { return e.cause }

// Is matches any StandardError carrying the same code, so the sentinels
// below work with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrInvalidTransition   = &StandardError{Code: ErrCodeInvalidTransition}
	ErrConcurrencyConflict = &StandardError{Code: ErrCodeConcurrencyConflict}
	ErrMissingCoreEntity   = &StandardError{Code: ErrCodeMissingCoreEntity}
	ErrPartialAggregation  = &StandardError{Code: ErrCodePartialAggregation}
	ErrCancelled           = &StandardError{Code: ErrCodeCancelled}
	ErrSolicitudNotFound   = &StandardError{Code: ErrCodeSolicitudNotFound}
	ErrPermissionDenied    = &StandardError{Code: ErrCodePermissionDenied}
	ErrRepositoryFailed    = &StandardError{Code: ErrCodeRepositoryFailed}
)

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewInvalidTransitionError reports a move that is not an edge of the state graph.
func NewInvalidTransitionError(from, to string) *StandardError {
	e := newError(ErrCodeInvalidTransition, "Transition not allowed",
		fmt.Sprintf("from: %s, to: %s", from, to), false, nil)
	e.Metadata = map[string]interface{}{"from": from, "to": to}
	return e
}

// NewConcurrencyConflictError reports a lost race on the same solicitud.
func NewConcurrencyConflictError(solicitudID string, cause error) *StandardError {
	return newError(ErrCodeConcurrencyConflict, "Solicitud was modified concurrently",
		fmt.Sprintf("solicitudId: %s", solicitudID), true, cause)
}

// NewMissingCoreEntityError reports a missing applicant or vehicle.
func NewMissingCoreEntityError(entity, id string) *StandardError {
	return newError(ErrCodeMissingCoreEntity, "Core entity missing for expediente",
		fmt.Sprintf("%s: %s", entity, id), false, nil)
}

// NewPartialAggregationError lists the optional sources that failed to load.
func NewPartialAggregationError(sources []string, cause error) *StandardError {
	e := newError(ErrCodePartialAggregation, "Expediente assembled with missing sources",
		strings.Join(sources, ","), false, cause)
	e.Metadata = map[string]interface{}{"sources": sources}
	return e
}

// NewCancelledError wraps a context error.
func NewCancelledError(operation string, cause error) *StandardError {
	return newError(ErrCodeCancelled, "Operation cancelled",
		fmt.Sprintf("operation: %s", operation), false, cause)
}

func NewSolicitudNotFoundError(solicitudID string) *StandardError {
	return newError(ErrCodeSolicitudNotFound, "Solicitud not found",
		fmt.Sprintf("solicitudId: %s", solicitudID), false, nil)
}

func NewPermissionDeniedError(actor, from, to string) *StandardError {
	return newError(ErrCodePermissionDenied, "Actor may not perform transition",
		fmt.Sprintf("actor: %s, from: %s, to: %s", actor, from, to), false, nil)
}

func NewInputValidationError(details string) *StandardError {
	return newError(ErrCodeInputValidationFailed, "Input validation failed", details, false, nil)
}

// NewRepositoryError wraps a storage failure. These are retried by the engine.
func NewRepositoryError(operation string, cause error) *StandardError {
	details := fmt.Sprintf("operation: %s", operation)
	if cause != nil {
		details += ", error: " + cause.Error()
	}
	return newError(ErrCodeRepositoryFailed, "Repository operation failed", details, true, cause)
}

func NewNotificationSendFailedError(channel string, cause error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %v", channel, cause), true, cause)
}

func NewDocumentGenerationFailedError(document string, cause error) *StandardError {
	return newError(ErrCodeDocumentGenerationFailed, "Document generation failed",
		fmt.Sprintf("document: %s, error: %v", document, cause), true, cause)
}

// BPMNErrorMapping maps internal error codes to BPMN error codes declared
// on the credito process boundary events.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidTransition:        "INVALID_TRANSITION",
	ErrCodeConcurrencyConflict:      "CONCURRENCY_CONFLICT",
	ErrCodeMissingCoreEntity:        "MISSING_CORE_ENTITY",
	ErrCodePartialAggregation:       "PARTIAL_AGGREGATION",
	ErrCodeCancelled:                "CANCELLED",
	ErrCodeSolicitudNotFound:        "SOLICITUD_NOT_FOUND",
	ErrCodePermissionDenied:         "PERMISSION_DENIED",
	ErrCodeInputValidationFailed:    "INPUT_VALIDATION_FAILED",
	ErrCodeRepositoryFailed:         "REPOSITORY_FAILED",
	ErrCodeNotificationSendFailed:   "NOTIFICATION_SEND_FAILED",
	ErrCodeDocumentGenerationFailed: "DOCUMENT_GENERATION_FAILED",
}

// GetRetryCount returns the job retry budget for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeConcurrencyConflict,
		ErrCodeRepositoryFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeDocumentGenerationFailed:
		return 3
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// AsStandard unwraps err to a *StandardError, or wraps it as INTERNAL_ERROR.
func AsStandard(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// CodeOf returns the taxonomy code for err, or "" for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsStandard(err).Code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeInvalidTransition, ErrCodeConcurrencyConflict, ErrCodePermissionDenied:
		return "TRANSITION"
	case ErrCodeMissingCoreEntity, ErrCodePartialAggregation, ErrCodeSolicitudNotFound:
		return "EXPEDIENTE"
	case ErrCodeRepositoryFailed:
		return "DATABASE"
	case ErrCodeNotificationSendFailed:
		return "NOTIFICATION"
	case ErrCodeDocumentGenerationFailed:
		return "DOCUMENT"
	case ErrCodeInputValidationFailed:
		return "VALIDATION"
	case ErrCodeCancelled:
		return "CANCELLATION"
	default:
		return "INTERNAL"
	}
}
