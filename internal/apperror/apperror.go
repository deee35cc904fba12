// Package apperror defines the error taxonomy shared by the backend and the CLI.
//
// Every failure that crosses a component boundary is one of the sentinels below,
// wrapped in an *AppError that carries a human-readable message. Callers branch
// with errors.Is; handlers translate the sentinel into an HTTP status.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrAuthMissing         = errors.New("authentication missing")
	ErrAuthInvalid         = errors.New("authentication invalid")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrNetwork             = errors.New("network error")
	ErrUpstream            = errors.New("upstream error")
	ErrValidation          = errors.New("validation error")
)

type AppError struct {
	Err     error  // sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Status  int    // Optional: upstream HTTP status that produced the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func AuthMissing(message string) *AppError {
	return &AppError{Err: ErrAuthMissing, Message: message, Status: http.StatusUnauthorized}
}

func AuthInvalid(message string) *AppError {
	return &AppError{Err: ErrAuthInvalid, Message: message, Status: http.StatusUnauthorized}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{Err: ErrForbidden, Message: message, Status: http.StatusForbidden}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
		Status:  http.StatusNotFound,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Network wraps a transport failure where no response was received.
func Network(message string, cause error) error {
	return fmt.Errorf("%w: %w", &AppError{Err: ErrNetwork, Message: message}, cause)
}

// FromStatus classifies a non-2xx upstream status. The same table applies to
// GitHub responses seen by the backend and to backend responses seen by the CLI.
//
//	401  → ErrAuthInvalid
//	403  → ErrForbidden
//	404  → ErrNotFound
//	5xx  → ErrUpstreamUnavailable
//	else → ErrUpstream
func FromStatus(status int, message string) *AppError {
	var sentinel error
	switch {
	case status == http.StatusUnauthorized:
		sentinel = ErrAuthInvalid
	case status == http.StatusForbidden:
		sentinel = ErrForbidden
	case status == http.StatusNotFound:
		sentinel = ErrNotFound
	case status >= http.StatusInternalServerError:
		sentinel = ErrUpstreamUnavailable
	default:
		sentinel = ErrUpstream
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &AppError{Err: sentinel, Message: message, Status: status}
}

// IsAuth reports whether err means the credential is missing or no longer valid.
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuthInvalid) || errors.Is(err, ErrAuthMissing)
}

// Code returns the machine-readable kind used in JSON error envelopes.
//
// ErrNetwork has no code of its own. On the backend it means GitHub could
// not be reached, which the envelope reports as upstream_unavailable; on the
// CLI it means no envelope arrived at all.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrAuthMissing):
		return "auth_missing"
	case errors.Is(err, ErrAuthInvalid):
		return "auth_invalid"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUpstreamUnavailable), errors.Is(err, ErrNetwork):
		return "upstream_unavailable"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	default:
		return "internal_error"
	}
}

// FromCode is the inverse of Code, used by the CLI to rebuild the sentinel
// from a backend error envelope. It never returns ErrNetwork: a decoded
// envelope means the backend answered.
func FromCode(code string) error {
	switch code {
	case "auth_missing":
		return ErrAuthMissing
	case "auth_invalid":
		return ErrAuthInvalid
	case "forbidden":
		return ErrForbidden
	case "not_found":
		return ErrNotFound
	case "upstream_unavailable":
		return ErrUpstreamUnavailable
	case "validation_error":
		return ErrValidation
	default:
		return nil
	}
}
