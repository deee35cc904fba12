package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/sakif/gitsweep/internal/apperror"
	"github.com/sakif/gitsweep/internal/auth"
	"github.com/sakif/gitsweep/internal/config"
	"github.com/sakif/gitsweep/internal/github"
	"github.com/sakif/gitsweep/internal/model"
	"github.com/sakif/gitsweep/internal/service"
)

// AuthHandler manages the GitHub OAuth login flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleGitHubLogin    → redirect the browser to GitHub's consent page
//   - HandleGitHubCallback → verify state, exchange the code, deliver the credential
//   - HandleUser           → report who the presented credential belongs to
//   - HandleLogout         → clear the credential cookie
//
// The backend keeps no session table. The credential itself is the session:
// it lives in the browser (cookie) or in the client's storage (query delivery)
// and comes back on every request.
type AuthHandler struct {
	provider *auth.GitHubProvider
	state    *auth.StateSigner
	cookies  *auth.Cookies
	auth     *service.AuthService
	cfg      *config.Config
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here.
func NewAuthHandler(
	provider *auth.GitHubProvider,
	state *auth.StateSigner,
	cookies *auth.Cookies,
	authService *service.AuthService,
	cfg *config.Config,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		state:    state,
		cookies:  cookies,
		auth:     authService,
		cfg:      cfg,
		logger:   logger,
	}
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github
//
// CSRF PROTECTION VIA STATE:
// A signed, short-lived state is stored in a cookie and sent to GitHub. The
// callback only proceeds if GitHub echoes back the same value and it still
// verifies, which proves this server started the login.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state, err := h.state.Issue()
	if err != nil {
		h.logger.Error("auth login: issuing state failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to start login",
			Code:  apperror.Code(err),
		})
		return
	}

	http.SetCookie(w, h.cookies.State(state))
	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusFound)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Clear the single-use state cookie
//  2. GitHub reported an error (user denied) → back to the client root
//  3. Verify state (CSRF check)              → on failure, client root
//  4. Exchange the code for a credential      → on failure, client root
//  5. Deliver the credential per TOKEN_DELIVERY and redirect
//
// Every failure lands on the client root with no credential; nothing is retried.
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cookieState := auth.StateFromRequest(r)

	// --- Step 1: state is single-use, whatever happens next ---
	http.SetCookie(w, h.cookies.ClearState())

	// --- Step 2: user denied authorization ---
	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth callback: authorization not granted",
			slog.String("error", errParam),
		)
		h.failLogin(w, r)
		return
	}

	// --- Step 3: CSRF check ---
	if err := h.state.Verify(cookieState, q.Get("state")); err != nil {
		h.logger.Warn("auth callback: rejected state", slog.String("error", err.Error()))
		h.failLogin(w, r)
		return
	}

	// --- Step 4: code → credential ---
	result, err := h.auth.CompleteLogin(r.Context(), q.Get("code"))
	if err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			h.logger.Warn("auth callback: missing OAuth code")
		} else {
			h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		}
		h.failLogin(w, r)
		return
	}

	// --- Step 5: deliver ---
	switch h.cfg.TokenDelivery {
	case config.DeliverQuery:
		target := h.cfg.ClientCallbackURL() + "?token=" + url.QueryEscape(result.Credential.Value())
		http.Redirect(w, r, target, http.StatusFound)
	default:
		http.SetCookie(w, h.cookies.Credential(result.Credential))
		http.Redirect(w, r, h.cfg.DashboardURL(), http.StatusFound)
	}
}

func (h *AuthHandler) failLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.cfg.ClientRoot(), http.StatusFound)
}

// HandleUser returns the profile of the presented credential.
//
// HTTP: GET /auth/user
// Auth: Bearer header or accessToken cookie
//
// This is the authoritative "am I logged in?" check: the credential is only
// valid if GitHub says so right now.
//
//	no credential       → 401 {isLoggedIn:false, message:"Access token missing"}
//	GitHub rejects it   → 401 {isLoggedIn:false, message:"Invalid or expired token"}
//	GitHub unavailable  → 502 {isLoggedIn:false, message:"GitHub service unavailable"}
func (h *AuthHandler) HandleUser(w http.ResponseWriter, r *http.Request) {
	cred, loc, ok := auth.CredentialFromRequest(r, h.cookies.Name())
	if !ok {
		h.logger.Warn("auth user: no access token presented")
		writeJSON(w, http.StatusUnauthorized, model.UserResponse{
			IsLoggedIn: false,
			Message:    "Access token missing",
		})
		return
	}

	profile, err := h.auth.CurrentUser(r.Context(), cred)
	if err != nil {
		status, message := http.StatusUnauthorized, "Failed to fetch user"
		switch {
		case github.IsUnavailable(err):
			status, message = http.StatusBadGateway, msgUnavailable
		case apperror.IsAuth(err):
			message = msgAuthInvalid
		}
		h.logger.Warn("auth user: lookup failed",
			slog.String("source", string(loc)),
			slog.String("error", err.Error()),
		)
		writeJSON(w, status, model.UserResponse{IsLoggedIn: false, Message: message})
		return
	}

	writeJSON(w, http.StatusOK, model.UserResponse{User: profile, IsLoggedIn: true})
}

// HandleLogout clears the credential cookie and sends the browser home.
//
// HTTP: GET /auth/logout
//
// The clearing cookie repeats the Path/Domain/SameSite/Secure the cookie was
// set with; otherwise the browser keeps the original. The credential itself
// stays valid on GitHub's side until revoked there.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.cookies.ClearCredential())
	http.Redirect(w, r, h.cfg.ClientRoot(), http.StatusFound)
}
