package api

import (
	"encoding/json"
	"net/http"

	apperrors "motocredito-workers/internal/common/errors"
)

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code apperrors.ErrorCode, message string) {
	respondJSON(w, status, map[string]errorBody{"error": {Code: string(code), Message: message}})
}

// respondErr maps the error taxonomy to an HTTP status.
func respondErr(w http.ResponseWriter, err error) {
	stdErr := apperrors.AsStandard(err)
	respondJSON(w, statusFor(stdErr.Code), map[string]errorBody{"error": {
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
	}})
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeSolicitudNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeInputValidationFailed:
		return http.StatusBadRequest
	case apperrors.ErrCodePermissionDenied:
		return http.StatusForbidden
	case apperrors.ErrCodeInvalidTransition:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeConcurrencyConflict:
		return http.StatusConflict
	case apperrors.ErrCodeCancelled:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeRepositoryFailed,
		apperrors.ErrCodeNotificationSendFailed,
		apperrors.ErrCodeDocumentGenerationFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
