// Package model defines the data structures shared by the backend and the CLI.
package model

import "time"

// Profile is the portion of GitHub's /user response this application keeps.
//
// It is fetched, never mutated locally, and cached next to the credential so the
// CLI can render "signed in as" without a round-trip.
//
// GitHub API docs: https://docs.github.com/en/rest/users/users#get-the-authenticated-user
type Profile struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url,omitempty"`
}

// DisplayName returns the profile name, falling back to the login.
func (p *Profile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Login
}

// UserResponse is the body of GET /auth/user.
type UserResponse struct {
	User       *Profile `json:"user,omitempty"`
	IsLoggedIn bool     `json:"isLoggedIn"`
	Message    string   `json:"message,omitempty"`
}

// StoredCredential is what the Credential Store persists for one backend origin.
// Credential and Profile are always written and cleared together.
type StoredCredential struct {
	Credential Credential `json:"credential"`
	Profile    *Profile   `json:"profile,omitempty"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}
