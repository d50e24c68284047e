package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// Sentinel errors returned by the registry layer. Handlers translate these
// into the JSON envelope via WriteDomainError.
var (
	ErrNotFound  = errors.New("record not found")
	ErrForbidden = errors.New("caller does not own this record")
)

// ValidationError carries field-level detail for malformed input.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
		Details: details,
	})
}

// WriteDomainError maps registry errors onto HTTP responses.
func WriteDomainError(w http.ResponseWriter, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidInput, ve.Message, map[string]string{"field": ve.Field})
	case errors.Is(err, ErrNotFound):
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, "Webhook not found", nil)
	case errors.Is(err, ErrForbidden):
		WriteError(w, http.StatusForbidden, ErrCodeForbidden, "Insufficient permissions", nil)
	default:
		WriteError(w, http.StatusInternalServerError, ErrCodeInternal, "Internal error", nil)
	}
}
