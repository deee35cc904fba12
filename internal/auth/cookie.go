package auth

import (
	"net/http"

	"github.com/sakif/gitsweep/internal/config"
	"github.com/sakif/gitsweep/internal/model"
)

const stateCookieName = "oauth_state"

// Cookies builds the cookies the OAuth flow sets and clears. Every cookie it
// clears carries the same Path/Domain/SameSite/Secure as the one it set, since
// browsers treat a cookie with different attributes as a different cookie.
type Cookies struct {
	policy config.CookieConfig
}

// NewCookies creates Cookies for the given policy.
func NewCookies(policy config.CookieConfig) *Cookies {
	return &Cookies{policy: policy}
}

// Name returns the credential cookie name.
func (c *Cookies) Name() string {
	return c.policy.Name
}

// Credential returns the accessToken cookie carrying the raw credential.
func (c *Cookies) Credential(cred model.Credential) *http.Cookie {
	return &http.Cookie{
		Name:     c.policy.Name,
		Value:    cred.Value(),
		Path:     "/",
		Domain:   c.policy.Domain,
		MaxAge:   int(c.policy.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.policy.Secure,
		SameSite: c.policy.SameSite,
	}
}

// ClearCredential returns a cookie that deletes the accessToken cookie.
func (c *Cookies) ClearCredential() *http.Cookie {
	return &http.Cookie{
		Name:     c.policy.Name,
		Value:    "",
		Path:     "/",
		Domain:   c.policy.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.policy.Secure,
		SameSite: c.policy.SameSite,
	}
}

// State returns the short-lived cookie holding the OAuth state.
//
// It is SameSite=Lax regardless of environment: GitHub's redirect back to the
// callback is a top-level GET navigation, which Lax cookies accompany.
func (c *Cookies) State(state string) *http.Cookie {
	return &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth/github",
		MaxAge:   int(StateTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.policy.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearState returns a cookie that deletes the state cookie. State is single-use.
func (c *Cookies) ClearState() *http.Cookie {
	return &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/auth/github",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.policy.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// StateFromRequest returns the state cookie value, or "" if absent.
func StateFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(stateCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
