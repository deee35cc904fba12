package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/gitsweep/internal/config"
	"github.com/sakif/gitsweep/internal/github/githubtest"
	"github.com/sakif/gitsweep/internal/handler"
	"github.com/sakif/gitsweep/internal/model"
)

const clientURL = "http://localhost:5173"

// =========================================================================
// TEST HELPERS
// =========================================================================

func testConfig(gh *githubtest.Server, env string, delivery config.TokenDelivery) *config.Config {
	return &config.Config{
		Port:       8080,
		BackendURL: "http://localhost:8080",
		ClientURL:  clientURL,
		Env:        env,
		LogFormat:  "text",
		GitHub: config.GitHubConfig{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			APIURL:       gh.URL,
			AuthURL:      gh.AuthURL(),
			TokenURL:     gh.TokenURL(),
		},
		Cookie:        config.CookiePolicy(env, ""),
		TokenDelivery: delivery,
		StateSecret:   "server-test-state-secret",
	}
}

// newTestServer returns the backend under test and the fake GitHub behind it.
func newTestServer(t *testing.T, env string, delivery config.TokenDelivery, repos ...model.Repository) (*httptest.Server, *githubtest.Server) {
	t.Helper()
	gh := githubtest.NewServer(t, repos...)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := New(testConfig(gh, env, delivery), logger, gh.Client())
	require.NoError(t, err)

	backend := httptest.NewServer(s.Handler())
	t.Cleanup(backend.Close)
	return backend, gh
}

// noRedirect is a client that reports redirects instead of following them.
func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// startLogin performs GET /auth/github and returns the state cookie and the
// state GitHub would echo back.
func startLogin(t *testing.T, backend *httptest.Server) (*http.Cookie, string) {
	t.Helper()
	resp, err := noRedirect().Get(backend.URL + "/auth/github")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(loc.Path, "/login/oauth/authorize"))
	assert.Equal(t, "repo delete_repo user", loc.Query().Get("scope"))
	assert.Equal(t, "http://localhost:8080/auth/github/callback", loc.Query().Get("redirect_uri"))

	stateCookie := cookieNamed(resp, "oauth_state")
	require.NotNil(t, stateCookie)
	assert.Equal(t, loc.Query().Get("state"), stateCookie.Value)
	return stateCookie, loc.Query().Get("state")
}

func callback(t *testing.T, backend *httptest.Server, stateCookie *http.Cookie, query url.Values) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, backend.URL+"/auth/github/callback?"+query.Encode(), nil)
	require.NoError(t, err)
	if stateCookie != nil {
		req.AddCookie(stateCookie)
	}
	resp, err := noRedirect().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, backend *httptest.Server, method, path, bearer string, cookie *http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, backend.URL+path, nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := noRedirect().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) handler.ErrorResponse {
	t.Helper()
	var e handler.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	return e
}

// =========================================================================
// GitHub login: cookie and query delivery, failure redirects
// =========================================================================

func TestLogin_CookieDelivery(t *testing.T) {
	backend, _ := newTestServer(t, config.EnvDevelopment, config.DeliverCookie)
	stateCookie, state := startLogin(t, backend)

	resp := callback(t, backend, stateCookie, url.Values{"code": {githubtest.Code}, "state": {state}})

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, clientURL+"/dashboard", resp.Header.Get("Location"))

	c := cookieNamed(resp, "accessToken")
	require.NotNil(t, c, "accessToken cookie must be set")
	assert.Equal(t, githubtest.Token, c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, 86400, c.MaxAge)
	assert.False(t, c.Secure, "development cookie is not Secure")
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)

	cleared := cookieNamed(resp, "oauth_state")
	require.NotNil(t, cleared, "state cookie is single-use")
	assert.True(t, cleared.MaxAge < 0)
}

func TestLogin_ProductionCookieAttributes(t *testing.T) {
	backend, _ := newTestServer(t, config.EnvProduction, config.DeliverCookie)
	stateCookie, state := startLogin(t, backend)

	resp := callback(t, backend, stateCookie, url.Values{"code": {githubtest.Code}, "state": {state}})

	c := cookieNamed(resp, "accessToken")
	require.NotNil(t, c)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
}

func TestLogin_QueryDelivery(t *testing.T) {
	backend, _ := newTestServer(t, config.EnvDevelopment, config.DeliverQuery)
	stateCookie, state := startLogin(t, backend)

	resp := callback(t, backend, stateCookie, url.Values{"code": {githubtest.Code}, "state": {state}})

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, clientURL+"/auth/callback?token="+githubtest.Token, resp.Header.Get("Location"))
	assert.Nil(t, cookieNamed(resp, "accessToken"), "exactly one delivery strategy is active")
}

func TestLogin_Failures(t *testing.T) {
	backend, _ := newTestServer(t, config.EnvDevelopment, config.DeliverCookie)

	tests := []struct {
		name       string
		withCookie bool
		query      func(state string) url.Values
	}{
		{"user denied", true, func(s string) url.Values {
			return url.Values{"error": {"access_denied"}, "state": {s}}
		}},
		{"missing state cookie", false, func(s string) url.Values {
			return url.Values{"code": {githubtest.Code}, "state": {s}}
		}},
		{"state mismatch", true, func(string) url.Values {
			return url.Values{"code": {githubtest.Code}, "state": {"forged"}}
		}},
		{"missing code", true, func(s string) url.Values {
			return url.Values{"state": {s}}
		}},
		{"exchange rejected", true, func(s string) url.Values {
			return url.Values{"code": {"expired-code"}, "state": {s}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stateCookie, state := startLogin(t, backend)
			if !tt.withCookie {
				stateCookie = nil
			}

			resp := callback(t, backend, stateCookie, tt.query(state))
			assert.Equal(t, http.StatusFound, resp.StatusCode)
			assert.Equal(t, clientURL+"/", resp.Header.Get("Location"))
			assert.Nil(t, cookieNamed(resp, "accessToken"), "no credential on failure")
		})
	}
}

// =========================================================================
// /auth/user
// =========================================================================

func TestAuthUser(t *testing.T) {
	backend, gh := newTestServer(t, config.EnvDevelopment, config.DeliverCookie)

	t.Run("cookie credential", func(t *testing.T) {
		resp := get(t, backend, http.MethodGet, "/auth/user", "", &http.Cookie{Name: "accessToken", Value: githubtest.Token})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body model.UserResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.True(t, body.IsLoggedIn)
		require.NotNil(t, body.User)
		assert.Equal(t, "octocat", body.User.Login)
	})

	t.Run("bearer credential", func(t *testing.T) {
		resp := get(t, backend, http.MethodGet, "/auth/user", githubtest.Token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("missing credential", func(t *testing.T) {
		resp := get(t, backend, http.MethodGet, "/auth/user", "", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var body model.UserResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.False(t, body.IsLoggedIn)
		assert.Equal(t, "Access token missing", body.Message)
	})

	t.Run("invalid credential", func(t *testing.T) {
		resp := get(t, backend, http.MethodGet, "/auth/user", "gho_revoked", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var body model.UserResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.False(t, body.IsLoggedIn)
	})

	t.Run("GitHub unavailable", func(t *testing.T) {
		gh.Fail(http.StatusServiceUnavailable)
		defer gh.Fail(0)

		resp := get(t, backend, http.MethodGet, "/auth/user", githubtest.Token, nil)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})
}

// =========================================================================
// /repos: list, delete and upstream error mapping
// =========================================================================

func TestRepos_Anonymous(t *testing.T) {
	backend, gh := newTestServer(t, config.EnvDevelopment, config.DeliverCookie)

	resp := get(t, backend, http.MethodGet, "/repos", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	e := decodeError(t, resp)
	assert.Equal(t, "Authentication required", e.Error)
	assert.Equal(t, "auth_missing", e.Code)
	assert.Zero(t, gh.Count("GET /user/repos"), "GitHub must not be called without a credential")
}

func TestRepos_List(t *testing.T) {
	backend, _ := newTestServer(t, config.EnvDevelopment, config.DeliverCookie,
		githubtest.Repo(1, "acme", "widget"),
		githubtest.Repo(2, "acme", "gadget"),
		githubtest.Repo(3, "acme", "gizmo"),
	)
	cookie := &http.Cookie{Name: "accessToken", Value: githubtest.Token}

	first := get(t, backend, http.MethodGet, "/repos", "", cookie)
	require.Equal(t, http.StatusOK, first.StatusCode)

	var repos []map[string]any
	require.NoError(t, json.NewDecoder(first.Body).Decode(&repos))
	require.Len(t, repos, 3)
	for _, r := range repos {
		assert.NotEmpty(t, r["full_name"])
	}

	// Same credential, no mutation in between → same set.
	second := get(t, backend, http.MethodGet, "/repos", "", cookie)
	var again []map[string]any
	require.NoError(t, json.NewDecoder(second.Body).Decode(&again))
	assert.Equal(t, repos, again)
}

func TestRepos_ListEmptyIsArray(t *testing.T) {
	backend, _ := newTestServer(t, config.EnvDevelopment, config.DeliverCookie)

	resp := get(t, backend, http.MethodGet, "/repos", githubtest.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "[]", strings.TrimSpace(string(body)))
}

func TestRepos_ListUpstreamMapping(t *testing.T) {
	backend, gh := newTestServer(t, config.EnvDevelopment, config.DeliverCookie)

	tests := []struct {
		upstream int
		want     int
		code     string
	}{
		{http.StatusUnauthorized, http.StatusUnauthorized, "auth_invalid"},
		{http.StatusForbidden, http.StatusForbidden, "forbidden"},
		{http.StatusInternalServerError, http.StatusBadGateway, "upstream_unavailable"},
		{http.StatusBadGateway, http.StatusBadGateway, "upstream_unavailable"},
		{http.StatusUnprocessableEntity, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.upstream), func(t *testing.T) {
			gh.Fail(tt.upstream)
			defer gh.Fail(0)

			resp := get(t, backend, http.MethodGet, "/repos", githubtest.Token, nil)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.Equal(t, tt.code, decodeError(t, resp).Code)
		})
	}
}

func TestRepos_Delete(t *testing.T) {
	backend, gh := newTestServer(t, config.EnvDevelopment, config.DeliverCookie,
		githubtest.Repo(1, "acme", "widget"),
		githubtest.Repo(2, "acme", "gadget"),
	)

	resp := get(t, backend, http.MethodDelete, "/repos/acme/widget", githubtest.Token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Empty(t, body)
	assert.False(t, gh.Has("acme/widget"))

	// The listing no longer includes it.
	list := get(t, backend, http.MethodGet, "/repos", githubtest.Token, nil)
	var repos []model.Repository
	require.NoError(t, json.NewDecoder(list.Body).Decode(&repos))
	require.Len(t, repos, 1)
	assert.Equal(t, "acme/gadget", repos[0].FullName)

	// Deleting it again is a 404.
	again := get(t, backend, http.MethodDelete, "/repos/acme/widget", githubtest.Token, nil)
	assert.Equal(t, http.StatusNotFound, again.StatusCode)
	assert.Equal(t, "Repository not found", decodeError(t, again).Error)
}

func TestRepos_DeleteInvalidName(t *testing.T) {
	backend, gh := newTestServer(t, config.EnvDevelopment, config.DeliverCookie)

	resp := get(t, backend, http.MethodDelete, "/repos/-acme/widget", githubtest.Token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", decodeError(t, resp).Code)
	assert.Zero(t, gh.Count("DELETE /repos/-acme/widget"))
}

func TestRepos_DeleteUpstreamOutage(t *testing.T) {
	backend, gh := newTestServer(t, config.EnvDevelopment, config.DeliverCookie, githubtest.Repo(1, "acme", "widget"))
	gh.Fail(http.StatusServiceUnavailable)

	resp := get(t, backend, http.MethodDelete, "/repos/acme/widget", githubtest.Token, nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestGitHubUnreachable_AllRoutesAnswer502(t *testing.T) {
	backend, gh := newTestServer(t, config.EnvDevelopment, config.DeliverCookie, githubtest.Repo(1, "acme", "widget"))
	gh.Close()

	for _, tt := range []struct{ method, path string }{
		{http.MethodGet, "/repos"},
		{http.MethodDelete, "/repos/acme/widget"},
	} {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := get(t, backend, tt.method, tt.path, githubtest.Token, nil)
			assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
			e := decodeError(t, resp)
			assert.Equal(t, "upstream_unavailable", e.Code)
			assert.Equal(t, "GitHub service unavailable", e.Error)
		})
	}

	t.Run("GET /auth/user", func(t *testing.T) {
		resp := get(t, backend, http.MethodGet, "/auth/user", githubtest.Token, nil)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

		var body model.UserResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "GitHub service unavailable", body.Message)
	})
}

// =========================================================================
// /auth/logout: the cookie is cleared with matching attributes
// =========================================================================

func TestLogout(t *testing.T) {
	for _, env := range []string{config.EnvDevelopment, config.EnvProduction} {
		t.Run(env, func(t *testing.T) {
			backend, _ := newTestServer(t, env, config.DeliverCookie)

			stateCookie, state := startLogin(t, backend)
			login := callback(t, backend, stateCookie, url.Values{"code": {githubtest.Code}, "state": {state}})
			set := cookieNamed(login, "accessToken")
			require.NotNil(t, set)

			resp := get(t, backend, http.MethodGet, "/auth/logout", "", set)
			assert.Equal(t, http.StatusFound, resp.StatusCode)
			assert.Equal(t, clientURL+"/", resp.Header.Get("Location"))

			cleared := cookieNamed(resp, "accessToken")
			require.NotNil(t, cleared)
			assert.Empty(t, cleared.Value)
			assert.True(t, cleared.MaxAge < 0)
			assert.Equal(t, set.Path, cleared.Path)
			assert.Equal(t, set.Domain, cleared.Domain)
			assert.Equal(t, set.Secure, cleared.Secure)
			assert.Equal(t, set.SameSite, cleared.SameSite)
			assert.Equal(t, set.HttpOnly, cleared.HttpOnly)
		})
	}
}

// =========================================================================
// MISC
// =========================================================================

func TestRoot(t *testing.T) {
	backend, _ := newTestServer(t, config.EnvDevelopment, config.DeliverCookie)

	resp := get(t, backend, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body["message"])
}

func TestCORSPreflight(t *testing.T) {
	backend, _ := newTestServer(t, config.EnvDevelopment, config.DeliverCookie)

	req, _ := http.NewRequest(http.MethodOptions, backend.URL+"/repos/acme/widget", nil)
	req.Header.Set("Origin", clientURL)
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, clientURL, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}
