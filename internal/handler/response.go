package handler

// Response helpers. Every endpoint answers with the same JSON shapes and
// the error mapping from domain sentinels to HTTP statuses lives in
// exactly one switch — services never see a status code.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/microblog/internal/apperror"
)

// ErrorResponse is the standard error format returned by all endpoints.
type ErrorResponse struct {
	Error   string            `json:"error"`            // machine-readable kind, e.g. "invalid_credentials"
	Message string            `json:"message"`          // human-readable description
	Fields  map[string]string `json:"fields,omitempty"` // per-field validation messages
}

// writeJSON sends a JSON response with the given status code.
// Headers and status must go out before the body; once Encode writes,
// they are frozen.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to HTTP and sends it.
//
// Status mapping:
//
//	validation / unknown provider → 422  (bad field values)
//	invalid credentials           → 401
//	identity unavailable          → 400  (provider denied or unreachable)
//	not found                     → 404
//	forbidden                     → 403
//	conflict (retries exhausted)  → 500
//	billing provider              → 500
//	anything else                 → 500, details never exposed
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	errorType := "internal_error"

	switch {
	case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrInvalidProvider):
		status = http.StatusUnprocessableEntity
		errorType = "validation_error"
	case errors.Is(err, apperror.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		errorType = "invalid_credentials"
	case errors.Is(err, apperror.ErrIdentityUnavailable):
		status = http.StatusBadRequest
		errorType = "identity_unavailable"
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
		errorType = "not_found"
	case errors.Is(err, apperror.ErrForbidden):
		status = http.StatusForbidden
		errorType = "forbidden"
	case errors.Is(err, apperror.ErrConflict):
		errorType = "conflict"
	case errors.Is(err, apperror.ErrBillingProvider):
		errorType = "billing_error"
	}

	resp := ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
	}
	if appErr.Field != "" {
		resp.Fields = map[string]string{appErr.Field: appErr.Message}
	}

	writeJSON(w, status, resp)
}

// writeValidationErrors sends a 422 with one message per failed field.
func writeValidationErrors(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "validation_error",
		Message: "The given data was invalid.",
		Fields:  fields,
	})
}
