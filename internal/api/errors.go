// Package api provides the HTTP handlers of the EtkinlikQR API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yusufkarademir/etkinlikqr/internal/event"
	"github.com/yusufkarademir/etkinlikqr/internal/middleware"
	"github.com/yusufkarademir/etkinlikqr/internal/moderation"
	"github.com/yusufkarademir/etkinlikqr/internal/photo"
	"github.com/yusufkarademir/etkinlikqr/internal/reaction"
	"github.com/yusufkarademir/etkinlikqr/internal/upload"
	"github.com/yusufkarademir/etkinlikqr/internal/user"
)

// Error codes used throughout the API.
const (
	ErrCodeValidation      = "validation_error"
	ErrCodeBadRequest      = "bad_request"
	ErrCodeAuthFailed      = "auth_failed"
	ErrCodeForbidden       = "forbidden"
	ErrCodeNotFound        = "not_found"
	ErrCodeConflict        = "conflict"
	ErrCodeFeatureDisabled = "feature_disabled"
	ErrCodePanicMode       = "panic_mode"
	ErrCodeUnsupportedType = "unsupported_type"
	ErrCodeFileTooLarge    = "file_too_large"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeInternal        = "internal_error"
)

var (
	// errFeatureDisabled is returned for comments or reactions the organizer turned off.
	errFeatureDisabled = errors.New("feature disabled for this event")
	// errPanicMode is returned for guest writes while the event is in panic mode.
	errPanicMode = errors.New("event is in panic mode")
)

// ErrorResponse represents the standard error response format:
// {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response. Pass a context carrying
// the error code (middleware.SetErrorCode) so request logging picks it up.
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.UpdateResponseContext(w, ctx)

	data, err := json.Marshal(ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusCodeMapping returns the HTTP status code for an error code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case ErrCodeForbidden, ErrCodeFeatureDisabled:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodePanicMode:
		return http.StatusLocked
	case ErrCodeUnsupportedType:
		return http.StatusUnsupportedMediaType
	case ErrCodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// fail writes code with its mapped status.
func fail(w http.ResponseWriter, r *http.Request, code, message string) {
	ctx := middleware.SetErrorCode(r.Context(), code)
	WriteError(w, ctx, StatusCodeMapping(code), code, message)
}

// writeDomainError maps a domain error to the API envelope. Unknown errors are
// logged and reported as internal errors.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, moderation.ErrForbidden):
		fail(w, r, ErrCodeForbidden, "You are not allowed to moderate this content")
	case errors.Is(err, moderation.ErrNotFound):
		fail(w, r, ErrCodeNotFound, "None of the given items exist")
	case errors.Is(err, moderation.ErrEmptyBatch):
		fail(w, r, ErrCodeValidation, "ids must not be empty")
	case errors.Is(err, moderation.ErrEmptyPatch):
		fail(w, r, ErrCodeValidation, "No settings given")
	case errors.Is(err, event.ErrEventNotFound):
		fail(w, r, ErrCodeNotFound, "Event not found")
	case errors.Is(err, event.ErrMissionNotFound):
		fail(w, r, ErrCodeNotFound, "Mission not found")
	case errors.Is(err, photo.ErrPhotoNotFound):
		fail(w, r, ErrCodeNotFound, "Photo not found")
	case errors.Is(err, errFeatureDisabled):
		fail(w, r, ErrCodeFeatureDisabled, "This feature is disabled for the event")
	case errors.Is(err, errPanicMode):
		fail(w, r, ErrCodePanicMode, "The event is temporarily closed")
	case errors.Is(err, upload.ErrUnsupportedType):
		fail(w, r, ErrCodeUnsupportedType, "Unsupported file type")
	case errors.Is(err, upload.ErrFileTooLarge):
		fail(w, r, ErrCodeFileTooLarge, "File is too large")
	case errors.Is(err, upload.ErrEmptyFile):
		fail(w, r, ErrCodeValidation, "File is empty")
	case errors.Is(err, upload.ErrInvalidKey):
		fail(w, r, ErrCodeValidation, "Upload key does not belong to this event")
	case errors.Is(err, upload.ErrObjectNotFound):
		fail(w, r, ErrCodeValidation, "Upload not found")
	case errors.Is(err, reaction.ErrUnsupportedEmoji):
		fail(w, r, ErrCodeValidation, "Unsupported emoji")
	case errors.Is(err, user.ErrEmailTaken):
		fail(w, r, ErrCodeConflict, "Email is already registered")
	case errors.Is(err, user.ErrInvalidCredentials):
		fail(w, r, ErrCodeAuthFailed, "Invalid email or password")
	default:
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		fail(w, r, ErrCodeInternal, "Internal server error")
	}
}

// writeJSON writes v with status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// decodeJSON decodes the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		fail(w, r, ErrCodeBadRequest, "Invalid JSON in request body")
		return false
	}
	return true
}
