package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/gitsweep/internal/apperror"
	"github.com/sakif/gitsweep/internal/client"
	"github.com/sakif/gitsweep/internal/config"
	"github.com/sakif/gitsweep/internal/github/githubtest"
	"github.com/sakif/gitsweep/internal/model"
	"github.com/sakif/gitsweep/internal/repository"
	"github.com/sakif/gitsweep/internal/repository/memory"
	"github.com/sakif/gitsweep/internal/server/servertest"
)

type fixture struct {
	backend  *servertest.Backend
	client   *client.Client
	store    *memory.Store
	resolver *Resolver
	key      string
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, repos ...model.Repository) *fixture {
	t.Helper()
	backend := servertest.New(t, config.DeliverQuery, repos...)

	c, err := client.New(backend.URL)
	require.NoError(t, err)

	store := memory.New()
	r, err := New(c, store, discard())
	require.NoError(t, err)

	key, err := repository.Key(backend.URL)
	require.NoError(t, err)

	return &fixture{backend: backend, client: c, store: store, resolver: r, key: key}
}

func (f *fixture) stored(t *testing.T) *model.StoredCredential {
	t.Helper()
	entry, err := f.store.Get(context.Background(), f.key)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil
	}
	require.NoError(t, err)
	return entry
}

func octocat() *model.Profile {
	return &model.Profile{ID: 583231, Login: "octocat"}
}

// =========================================================================
// Resolve
// =========================================================================

func TestResolve_Anonymous(t *testing.T) {
	f := newFixture(t)

	s, err := f.resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Nil(t, f.resolver.Current())
	assert.Nil(t, f.stored(t))
}

func TestResolve_StoredProfileSkipsNetwork(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, f.key, &model.StoredCredential{Credential: githubtest.Token, Profile: octocat()}))

	s, err := f.resolver.Resolve(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "octocat", s.Profile.Login)
	assert.Equal(t, model.LocationStorage, s.Source)
	assert.Zero(t, f.backend.GitHub.Count("GET /user"), "stored profile must not trigger a lookup")

	cred, ok := f.resolver.Credential()
	assert.True(t, ok)
	assert.Equal(t, model.Credential(githubtest.Token), cred)
}

func TestResolve_CredentialOnlyAsksBackend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, f.key, &model.StoredCredential{Credential: githubtest.Token}))

	s, err := f.resolver.Resolve(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "octocat", s.Profile.Login)
	assert.Equal(t, 1, f.backend.GitHub.Count("GET /user"))

	entry := f.stored(t)
	require.NotNil(t, entry)
	require.NotNil(t, entry.Profile, "profile is written back next to the credential")
	assert.Equal(t, "octocat", entry.Profile.Login)
}

func TestResolve_CookieOnly(t *testing.T) {
	f := newFixture(t)
	f.client.SetCookie(&http.Cookie{Name: "accessToken", Value: githubtest.Token})

	s, err := f.resolver.Resolve(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, model.LocationCookie, s.Source)
	assert.Empty(t, s.Credential)
	assert.Nil(t, f.stored(t), "nothing to store without a readable credential")

	_, ok := f.resolver.Credential()
	assert.False(t, ok, "requests keep riding on the cookie jar")
}

func TestResolve_RevokedCredentialClearsStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.backend.GitHub.Revoke(githubtest.Token)
	require.NoError(t, f.store.Set(ctx, f.key, &model.StoredCredential{Credential: githubtest.Token}))

	s, err := f.resolver.Resolve(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Nil(t, f.stored(t))
}

func TestResolve_BackendDownKeepsStore(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()

	c, err := client.New(ts.URL)
	require.NoError(t, err)
	store := memory.New()
	r, err := New(c, store, discard())
	require.NoError(t, err)

	key, err := repository.Key(ts.URL)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, key, &model.StoredCredential{Credential: githubtest.Token}))

	_, err = r.Resolve(ctx)
	assert.True(t, errors.Is(err, apperror.ErrNetwork), "got %v", err)

	_, err = store.Get(ctx, key)
	assert.NoError(t, err, "a network failure is not a logout")
}

// =========================================================================
// 401 anywhere turns into logged out
// =========================================================================

func TestAuthInvalidOnLaterCall(t *testing.T) {
	f := newFixture(t, githubtest.Repo(1, "octocat", "hello-world"))
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, f.key, &model.StoredCredential{Credential: githubtest.Token, Profile: octocat()}))

	s, err := f.resolver.Resolve(ctx)
	require.NoError(t, err)
	require.NotNil(t, s, "optimistic until proven otherwise")

	f.backend.GitHub.Revoke(githubtest.Token)
	_, err = f.client.ListRepositories(ctx, 1)
	assert.True(t, errors.Is(err, apperror.ErrAuthInvalid), "got %v", err)

	assert.Nil(t, f.resolver.Current())
	assert.Nil(t, f.stored(t))
}

// =========================================================================
// Login / Logout / callback
// =========================================================================

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.resolver.Login(ctx, githubtest.Token)
	require.NoError(t, err)
	assert.Equal(t, "octocat", s.Profile.Login)

	entry := f.stored(t)
	require.NotNil(t, entry)
	assert.Equal(t, model.Credential(githubtest.Token), entry.Credential)
	assert.False(t, entry.UpdatedAt.IsZero())
}

func TestLogin_Rejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.resolver.Login(ctx, "")
	assert.True(t, errors.Is(err, apperror.ErrAuthMissing))

	_, err = f.resolver.Login(ctx, "gho_not_a_real_token")
	assert.True(t, apperror.IsAuth(err), "got %v", err)
	assert.Nil(t, f.stored(t))
	assert.Nil(t, f.resolver.Current())
}

func TestLogin_RejectedCandidateKeepsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.resolver.Login(ctx, githubtest.Token)
	require.NoError(t, err)

	_, err = f.resolver.Login(ctx, "gho_typo")
	assert.True(t, apperror.IsAuth(err), "got %v", err)

	entry := f.stored(t)
	require.NotNil(t, entry, "a mistyped token must not sign the user out")
	assert.Equal(t, model.Credential(githubtest.Token), entry.Credential)

	s := f.resolver.Current()
	require.NotNil(t, s)
	assert.Equal(t, model.Credential(githubtest.Token), s.Credential)
}

func TestHandleAuthInvalid_StoredCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, f.key, &model.StoredCredential{Credential: githubtest.Token}))

	f.resolver.HandleAuthInvalid(ctx, "gho_other")
	assert.NotNil(t, f.stored(t))

	f.resolver.HandleAuthInvalid(ctx, githubtest.Token)
	assert.Nil(t, f.stored(t))
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.resolver.Login(ctx, githubtest.Token)
	require.NoError(t, err)

	require.NoError(t, f.resolver.Logout(ctx))
	assert.Nil(t, f.resolver.Current())
	assert.Nil(t, f.stored(t))
}

func TestCompleteCallback(t *testing.T) {
	f := newFixture(t)
	u, err := url.Parse(servertest.ClientURL + "/auth/callback?token=" + githubtest.Token + "&tab=repos")
	require.NoError(t, err)

	scrubbed, err := f.resolver.CompleteCallback(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, servertest.ClientURL+"/dashboard?tab=repos", scrubbed.String())
	assert.NotNil(t, f.resolver.Current())
	assert.NotNil(t, f.stored(t))
}

func TestCompleteCallback_NoToken(t *testing.T) {
	f := newFixture(t)
	u, err := url.Parse(servertest.ClientURL + "/auth/callback")
	require.NoError(t, err)

	_, err = f.resolver.CompleteCallback(context.Background(), u)
	assert.True(t, errors.Is(err, apperror.ErrAuthMissing))
}

func TestScrubToken(t *testing.T) {
	u, err := url.Parse("http://localhost:5173/auth/callback?token=gho_secret")
	require.NoError(t, err)

	got := ScrubToken(u)
	assert.Equal(t, "http://localhost:5173/dashboard", got.String())
	assert.Equal(t, "gho_secret", u.Query().Get("token"), "input is not modified")
}
