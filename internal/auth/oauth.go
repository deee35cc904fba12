package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/sakif/gitsweep/internal/model"
)

// Scopes requested from GitHub. delete_repo is what makes DELETE /repos work;
// without it GitHub answers 403 even for repositories the user owns.
var Scopes = []string{"repo", "delete_repo", "user"}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization Code flow.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. The server redirects the user to GitHub's authorization endpoint.
//  2. The user approves (or denies) the request on GitHub.
//  3. GitHub redirects back to the callback URL with a short-lived "code".
//  4. The server exchanges the code for an access token (server-to-server).
//
// Unlike a classic web app, the access token itself is the session here: it is
// handed to the browser (cookie or query parameter) and presented on every call.
type GitHubProvider struct {
	config *oauth2.Config
}

// NewGitHubProvider creates a GitHubProvider.
//
// authURL and tokenURL override the default GitHub endpoints when non-empty,
// which lets tests point the exchange at an httptest server.
func NewGitHubProvider(clientID, clientSecret, callbackURL, authURL, tokenURL string) *GitHubProvider {
	endpoint := github.Endpoint
	if authURL != "" {
		endpoint.AuthURL = authURL
	}
	if tokenURL != "" {
		endpoint.TokenURL = tokenURL
	}

	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       Scopes,
			Endpoint:     endpoint,
		},
	}
}

// AuthURL returns the consent page URL carrying the given state.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for a bearer credential.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (model.Credential, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("auth: GitHub returned an empty access token")
	}
	return model.Credential(token.AccessToken), nil
}
