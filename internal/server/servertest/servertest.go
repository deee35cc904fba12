// Package servertest runs the real backend against a fake GitHub, for
// packages that test the client side end to end.
package servertest

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/sakif/gitsweep/internal/config"
	"github.com/sakif/gitsweep/internal/github/githubtest"
	"github.com/sakif/gitsweep/internal/model"
	"github.com/sakif/gitsweep/internal/server"
)

// ClientURL is the CLIENT origin the backend redirects to.
const ClientURL = "http://localhost:5173"

// Backend is a running backend plus the fake GitHub behind it.
type Backend struct {
	*httptest.Server
	GitHub *githubtest.Server
	Config *config.Config
}

// New starts a development backend with the given delivery strategy.
func New(t testing.TB, delivery config.TokenDelivery, repos ...model.Repository) *Backend {
	t.Helper()
	gh := githubtest.NewServer(t, repos...)

	cfg := &config.Config{
		Port:       8080,
		BackendURL: "http://localhost:8080",
		ClientURL:  ClientURL,
		Env:        config.EnvDevelopment,
		LogFormat:  "text",
		GitHub: config.GitHubConfig{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			APIURL:       gh.URL,
			AuthURL:      gh.AuthURL(),
			TokenURL:     gh.TokenURL(),
		},
		Cookie:        config.CookiePolicy(config.EnvDevelopment, ""),
		TokenDelivery: delivery,
		StateSecret:   "servertest-state-secret",
	}

	s, err := server.New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), gh.Client())
	if err != nil {
		t.Fatalf("servertest: creating server: %v", err)
	}

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &Backend{Server: ts, GitHub: gh, Config: cfg}
}
