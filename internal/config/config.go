// Package config loads the backend configuration from the environment.
//
// The Config struct is built once in main and passed by pointer to everything
// that needs it. Nothing in this package keeps package-level state.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// TokenDelivery selects how the credential gets from the callback to the client.
// Exactly one strategy is active per process.
type TokenDelivery string

const (
	// DeliverCookie sets an HttpOnly accessToken cookie and redirects to the dashboard.
	DeliverCookie TokenDelivery = "cookie"
	// DeliverQuery redirects to the client's callback page with ?token=.
	DeliverQuery TokenDelivery = "query"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds backend configuration.
type Config struct {
	Port       int
	BackendURL string // own public origin, used to build the OAuth callback URL
	ClientURL  string // frontend origin: CORS allow-list and post-login redirects
	Env        string // NODE_ENV
	LogFormat  string // "text" or "json"

	GitHub GitHubConfig
	Cookie CookieConfig

	TokenDelivery TokenDelivery
	StateSecret   string
}

// GitHubConfig holds the OAuth app credentials and API endpoints.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	APIURL       string
	AuthURL      string // empty means golang.org/x/oauth2/github defaults
	TokenURL     string
}

// CookieConfig describes the attributes shared by setting and clearing the
// accessToken cookie. Clearing must use the same attributes or browsers keep
// the original.
type CookieConfig struct {
	Name     string
	Domain   string
	MaxAge   time.Duration
	Secure   bool
	SameSite http.SameSite
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return nil, err
	}

	env := getEnv("NODE_ENV", EnvDevelopment)

	defaultFormat := "text"
	if env == EnvProduction {
		defaultFormat = "json"
	}

	cfg := &Config{
		Port:       port,
		BackendURL: strings.TrimRight(getEnv("BACKEND_URL", fmt.Sprintf("http://localhost:%d", port)), "/"),
		ClientURL:  strings.TrimRight(getEnv("CLIENT", "http://localhost:5173"), "/"),
		Env:        env,
		LogFormat:  getEnv("LOG_FORMAT", defaultFormat),
		GitHub: GitHubConfig{
			ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
			APIURL:       strings.TrimRight(getEnv("GITHUB_API_URL", "https://api.github.com"), "/"),
			AuthURL:      os.Getenv("GITHUB_AUTH_URL"),
			TokenURL:     os.Getenv("GITHUB_TOKEN_URL"),
		},
		Cookie:        CookiePolicy(env, os.Getenv("COOKIE_DOMAIN")),
		TokenDelivery: TokenDelivery(getEnv("TOKEN_DELIVERY", string(DeliverCookie))),
		StateSecret:   os.Getenv("STATE_SECRET"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CookiePolicy returns the accessToken cookie attributes for an environment.
// Production runs the client on a different site, so the cookie has to be
// SameSite=None, which browsers only accept together with Secure.
func CookiePolicy(env, domain string) CookieConfig {
	c := CookieConfig{
		Name:     "accessToken",
		Domain:   domain,
		MaxAge:   24 * time.Hour,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
	}
	if env == EnvProduction {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

// Validate checks the invariants main relies on.
func (c *Config) Validate() error {
	var errs []error

	if c.GitHub.ClientID == "" {
		errs = append(errs, errors.New("GITHUB_CLIENT_ID is required"))
	}
	if c.GitHub.ClientSecret == "" {
		errs = append(errs, errors.New("GITHUB_CLIENT_SECRET is required"))
	}
	for name, raw := range map[string]string{"BACKEND_URL": c.BackendURL, "CLIENT": c.ClientURL, "GITHUB_API_URL": c.GitHub.APIURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", name, raw))
		}
	}
	switch c.TokenDelivery {
	case DeliverCookie, DeliverQuery:
	default:
		errs = append(errs, fmt.Errorf("TOKEN_DELIVERY must be %q or %q, got %q", DeliverCookie, DeliverQuery, c.TokenDelivery))
	}
	if c.StateSecret != "" && len(c.StateSecret) < 16 {
		errs = append(errs, errors.New("STATE_SECRET must be at least 16 characters"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether NODE_ENV selects the production policy.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// CallbackURL is the OAuth redirect URI registered with GitHub.
func (c *Config) CallbackURL() string {
	return c.BackendURL + "/auth/github/callback"
}

// DashboardURL is where the cookie strategy lands after login.
func (c *Config) DashboardURL() string {
	return c.ClientURL + "/dashboard"
}

// ClientCallbackURL is the client page that consumes ?token= in the query strategy.
func (c *Config) ClientCallbackURL() string {
	return c.ClientURL + "/auth/callback"
}

// ClientRoot is the unauthenticated landing page.
func (c *Config) ClientRoot() string {
	return c.ClientURL + "/"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s value %q: %w", key, raw, err)
	}
	return n, nil
}
