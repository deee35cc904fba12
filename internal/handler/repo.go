package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/gitsweep/internal/apperror"
	"github.com/sakif/gitsweep/internal/auth"
	"github.com/sakif/gitsweep/internal/service"
)

// Per-route wording, matching what the dashboard has always shown.
var (
	listMessages = routeMessages{
		Forbidden: "Access forbidden - insufficient permissions",
		NotFound:  "Not found",
		Fallback:  "Failed to fetch repositories",
	}
	deleteMessages = routeMessages{
		Forbidden: "Access forbidden - you may not have permission to delete this repository",
		NotFound:  "Repository not found",
		Fallback:  "Failed to delete repository",
	}
)

// RepoHandler handles HTTP requests for the user's repositories.
// Both routes sit behind auth.RequireCredential, so a credential is always in
// the request context by the time a method runs.
type RepoHandler struct {
	repos  *service.RepoService
	logger *slog.Logger
}

// NewRepoHandler creates a RepoHandler.
func NewRepoHandler(repos *service.RepoService, logger *slog.Logger) *RepoHandler {
	return &RepoHandler{repos: repos, logger: logger}
}

// HandleList returns one page of repositories.
//
// HTTP: GET /repos[?page=N]
// Response: 200 [Repository] (never null)
func (h *RepoHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	cred, _ := auth.CredentialFromContext(r.Context())

	page := 0
	if p := r.URL.Query().Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			writeError(w, r, h.logger, apperror.ValidationFailed("page", "page must be a number"), listMessages)
			return
		}
		page = n
	}

	repos, err := h.repos.List(r.Context(), cred, page)
	if err != nil {
		writeError(w, r, h.logger, err, listMessages)
		return
	}

	writeJSON(w, http.StatusOK, repos)
}

// HandleDelete deletes one repository.
//
// HTTP: DELETE /repos/{owner}/{repo}
// Response: 204 No Content with an empty body
func (h *RepoHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	cred, _ := auth.CredentialFromContext(r.Context())
	owner := chi.URLParam(r, "owner")
	repo := chi.URLParam(r, "repo")

	if err := h.repos.Delete(r.Context(), cred, owner, repo); err != nil {
		writeError(w, r, h.logger, err, deleteMessages)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleMissingCredential answers requests that reached a protected route
// without any credential.
func HandleMissingCredential(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusUnauthorized, ErrorResponse{
		Error: msgAuthRequired,
		Code:  apperror.Code(apperror.ErrAuthMissing),
	})
}

// HandleRoot is a liveness message.
//
// HTTP: GET /
func HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "GitHub Auth API (stateless mode)"})
}
