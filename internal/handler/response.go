package handler

// Response helpers shared by all handlers. Every error response has the same
// shape — {"error": "<machine-readable code>", "message": "<human text>"} —
// so the frontend can parse any failure the same way regardless of status.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/testimonial-board/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable error type (e.g. "validation_error")
	Message string `json:"message"` // human-readable description
}

// writeJSON sends a JSON response with the given status code.
// Headers and status must be written before the body — once Encode writes,
// header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status and sends the standard
// error shape. This is the only place the apperror taxonomy meets HTTP:
//
//	ErrValidation   → 400    ErrUnauthorized → 401
//	ErrForbidden    → 403    ErrNotFound     → 404
//	ErrConflict     → 409    ErrUpstream     → 502
//	anything else   → 500 with a generic message
//
// Unknown errors never leak their text to the caller — a raw database or
// transport error can contain paths, queries, or connection strings.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		case errors.Is(err, apperror.ErrUpstream):
			status = http.StatusBadGateway
			errorType = "upstream_error"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	// ErrUpstream can also arrive wrapped without an AppError (the media
	// client wraps the sentinel directly).
	if errors.Is(err, apperror.ErrUpstream) {
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "upstream_error",
			Message: "an external dependency failed",
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
