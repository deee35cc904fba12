package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/gitsweep/internal/apperror"
)

func TestStatusFor(t *testing.T) {
	msgs := routeMessages{Forbidden: "no delete for you", NotFound: "Repository not found", Fallback: "Failed to delete repository"}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"validation", apperror.ValidationFailed("owner", "invalid repository owner"), http.StatusBadRequest, "invalid repository owner"},
		{"missing", apperror.AuthMissing("x"), http.StatusUnauthorized, "Authentication required"},
		{"invalid", fmt.Errorf("wrapped: %w", apperror.FromStatus(401, "Bad credentials")), http.StatusUnauthorized, "Invalid or expired token"},
		{"forbidden", apperror.FromStatus(403, ""), http.StatusForbidden, "no delete for you"},
		{"not found", apperror.FromStatus(404, ""), http.StatusNotFound, "Repository not found"},
		{"upstream 5xx", apperror.FromStatus(503, ""), http.StatusBadGateway, "GitHub service unavailable"},
		{"upstream other", apperror.FromStatus(422, "Validation Failed"), http.StatusInternalServerError, "Failed to delete repository"},
		{"network", apperror.Network("GitHub is unreachable", errors.New("dial tcp: refused")), http.StatusBadGateway, "GitHub service unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "Failed to delete repository"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := statusFor(tt.err, msgs)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestStatusFor_Defaults(t *testing.T) {
	_, msg := statusFor(apperror.FromStatus(403, ""), routeMessages{})
	assert.Equal(t, "Access forbidden", msg)

	_, msg = statusFor(errors.New("boom"), routeMessages{})
	assert.Equal(t, "An internal error occurred", msg)
}

func TestWriteError_Envelope(t *testing.T) {
	rr := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/repos", nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	writeError(rr, r, logger, errors.New("sql: secret detail"), listMessages)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.NotContains(t, rr.Body.String(), "secret detail")

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "Failed to fetch repositories", body.Error)
	assert.Equal(t, "internal_error", body.Code)
}

func TestHandleMissingCredential(t *testing.T) {
	rr := httptest.NewRecorder()
	HandleMissingCredential(rr, httptest.NewRequest(http.MethodGet, "/repos", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"Authentication required","code":"auth_missing"}`, rr.Body.String())
}
