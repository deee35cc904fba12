package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/gitsweep/internal/config"
	"github.com/sakif/gitsweep/internal/model"
)

func TestCredentialFromRequest(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		cookie   string
		wantCred model.Credential
		wantLoc  model.Location
		wantOK   bool
	}{
		{name: "nothing presented", wantOK: false},
		{name: "cookie only", cookie: "gho_cookie", wantCred: "gho_cookie", wantLoc: model.LocationCookie, wantOK: true},
		{name: "bearer only", header: "Bearer gho_header", wantCred: "gho_header", wantLoc: model.LocationHeader, wantOK: true},
		{name: "bearer wins over cookie", header: "Bearer gho_header", cookie: "gho_cookie", wantCred: "gho_header", wantLoc: model.LocationHeader, wantOK: true},
		{name: "scheme is case-insensitive", header: "bearer gho_header", wantCred: "gho_header", wantLoc: model.LocationHeader, wantOK: true},
		{name: "non-bearer scheme rejected", header: "Basic dXNlcjpwYXNz", cookie: "gho_cookie", wantOK: false},
		{name: "empty bearer rejected", header: "Bearer ", wantOK: false},
		{name: "empty cookie ignored", cookie: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/repos", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: "accessToken", Value: tt.cookie})
			}

			cred, loc, ok := CredentialFromRequest(r, "accessToken")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantCred, cred)
			assert.Equal(t, tt.wantLoc, loc)
		})
	}
}

func TestRequireCredential(t *testing.T) {
	var seen model.Credential
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CredentialFromContext(r.Context())
		assert.Equal(t, model.LocationCookie, LocationFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
	onMissing := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}
	h := RequireCredential("accessToken", onMissing)(next)

	t.Run("anonymous request is rejected", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/repos", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("credential reaches the handler", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/repos", nil)
		r.AddCookie(&http.Cookie{Name: "accessToken", Value: "gho_abc"})
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, r)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, model.Credential("gho_abc"), seen)
	})
}

func TestCookies_ClearMatchesSet(t *testing.T) {
	c := NewCookies(config.CookiePolicy(config.EnvProduction, ".example.com"))

	set := c.Credential("gho_abc")
	cleared := c.ClearCredential()

	assert.Equal(t, "accessToken", set.Name)
	assert.Equal(t, "gho_abc", set.Value)
	assert.True(t, set.HttpOnly)
	assert.Equal(t, 86400, set.MaxAge)

	assert.Equal(t, set.Name, cleared.Name)
	assert.Equal(t, set.Path, cleared.Path)
	assert.Equal(t, set.Domain, cleared.Domain)
	assert.Equal(t, set.Secure, cleared.Secure)
	assert.Equal(t, set.SameSite, cleared.SameSite)
	assert.Equal(t, set.HttpOnly, cleared.HttpOnly)
	assert.Equal(t, -1, cleared.MaxAge)
	assert.Empty(t, cleared.Value)
}

func TestCookies_StateIsLax(t *testing.T) {
	c := NewCookies(config.CookiePolicy(config.EnvProduction, ""))
	s := c.State("xyz")

	assert.Equal(t, http.SameSiteLaxMode, s.SameSite)
	assert.True(t, s.Secure)
	assert.True(t, s.HttpOnly)
	assert.Equal(t, 600, s.MaxAge)

	r := httptest.NewRequest(http.MethodGet, "/auth/github/callback", nil)
	r.AddCookie(s)
	assert.Equal(t, "xyz", StateFromRequest(r))
}
