package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from the API has the same shape:
//   {"error": "Invalid or expired token", "code": "auth_invalid"}
//
// "error" is for humans and may differ per route ("Repository not found");
// "code" is the machine-readable kind from apperror.Code, which the CLI maps
// back to a sentinel with apperror.FromCode.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/gitsweep/internal/apperror"
	"github.com/sakif/gitsweep/internal/github"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error string `json:"error"` // Human-readable description
	Code  string `json:"code"`  // Machine-readable error kind (e.g., "auth_invalid")
}

// Messages shared by every route.
const (
	msgAuthRequired = "Authentication required"
	msgAuthInvalid  = "Invalid or expired token"
	msgUnavailable  = "GitHub service unavailable"
)

// routeMessages holds the wording a route uses for the kinds whose message
// depends on what was being attempted. Empty fields fall back to defaults.
type routeMessages struct {
	Forbidden string
	NotFound  string
	Fallback  string
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE the body. Once Encode writes, the
// headers are on the wire and later changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; we can only log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps a classified error to the HTTP status and message this
// backend answers with.
//
//	ErrValidation          → 400, the validation message
//	ErrAuthMissing         → 401 "Authentication required"
//	ErrAuthInvalid         → 401 "Invalid or expired token"
//	ErrForbidden           → 403, route wording
//	ErrNotFound            → 404, route wording
//	ErrUpstreamUnavailable → 502 "GitHub service unavailable"
//	ErrNetwork             → 502 "GitHub service unavailable" (GitHub unreachable)
//	anything else          → 500, route fallback (never the raw error)
func statusFor(err error, msgs routeMessages) (int, string) {
	var appErr *apperror.AppError

	switch {
	case errors.Is(err, apperror.ErrValidation):
		if errors.As(err, &appErr) {
			return http.StatusBadRequest, appErr.Message
		}
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, apperror.ErrAuthMissing):
		return http.StatusUnauthorized, msgAuthRequired
	case errors.Is(err, apperror.ErrAuthInvalid):
		return http.StatusUnauthorized, msgAuthInvalid
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, orDefault(msgs.Forbidden, "Access forbidden")
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, orDefault(msgs.NotFound, "Not found")
	case github.IsUnavailable(err):
		return http.StatusBadGateway, msgUnavailable
	default:
		return http.StatusInternalServerError, orDefault(msgs.Fallback, "An internal error occurred")
	}
}

// writeError logs err and sends the mapped JSON error. 5xx is logged at error
// level, 4xx at warn.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, msgs routeMessages) {
	status, message := statusFor(err, msgs)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, "request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("code", apperror.Code(err)),
		slog.String("error", err.Error()),
	)

	writeJSON(w, status, ErrorResponse{Error: message, Code: apperror.Code(err)})
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
