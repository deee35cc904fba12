package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/gitsweep/internal/apperror"
	"github.com/sakif/gitsweep/internal/model"
)

// AuthService handles the login callback and "who am I" lookups.
//
// DEPENDENCIES (injected via NewAuthService):
//   - oauth  Exchanger    → code-for-credential exchange with GitHub
//   - github GitHub       → profile lookup with a credential
//   - logger *slog.Logger → structured logging (logins, never credentials)
type AuthService struct {
	oauth  Exchanger
	github GitHub
	logger *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(oauth Exchanger, gh GitHub, logger *slog.Logger) *AuthService {
	return &AuthService{oauth: oauth, github: gh, logger: logger}
}

// LoginResult is what a successful callback produces.
type LoginResult struct {
	Credential model.Credential
	// Profile is nil when the exchange succeeded but the profile lookup did
	// not; the credential is still valid and is delivered anyway.
	Profile *model.Profile
}

// CompleteLogin exchanges the authorization code and looks up who logged in.
//
// FLOW:
//  1. Exchange code → credential (failure aborts the login)
//  2. GET /user with the fresh credential, only to log the login
//  3. Return the credential so the handler can deliver it
//
// Step 2 is best effort: the handler's job is to deliver the credential, and
// the client resolves the profile itself on its next /auth/user call.
func (s *AuthService) CompleteLogin(ctx context.Context, code string) (*LoginResult, error) {
	if code == "" {
		return nil, apperror.ValidationFailed("code", "missing OAuth code")
	}

	cred, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("service/auth: exchanging code: %w", err)
	}

	profile, err := s.github.User(ctx, cred)
	if err != nil {
		s.logger.Warn("login succeeded but profile lookup failed",
			slog.String("error", err.Error()),
		)
		return &LoginResult{Credential: cred}, nil
	}

	s.logger.Info("user authenticated via GitHub",
		slog.Int64("githubID", profile.ID),
		slog.String("login", profile.Login),
	)
	return &LoginResult{Credential: cred, Profile: profile}, nil
}

// CurrentUser returns the profile the credential belongs to.
//
// GitHub is the only authority on whether a credential is still valid, so this
// always asks it; a 401 from GitHub comes back as apperror.ErrAuthInvalid.
func (s *AuthService) CurrentUser(ctx context.Context, cred model.Credential) (*model.Profile, error) {
	if cred == "" {
		return nil, apperror.AuthMissing("Access token missing")
	}

	profile, err := s.github.User(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching current user: %w", err)
	}
	return profile, nil
}
