// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the wiring layer: it decides which URL maps to which
// handler, which middleware runs where, and how the process starts and stops.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → GitHubProvider, StateSigner, Cookies, github.Client
//	github.Client → AuthService, RepoService
//	services      → AuthHandler, RepoHandler
//
// Everything is assembled once in New (the composition root). The backend has
// no database: the only state it holds is configuration.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/gitsweep/internal/auth"
	"github.com/sakif/gitsweep/internal/config"
	"github.com/sakif/gitsweep/internal/github"
	"github.com/sakif/gitsweep/internal/handler"
	"github.com/sakif/gitsweep/internal/middleware"
	"github.com/sakif/gitsweep/internal/service"
)

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
}

// New creates a Server from a validated config.
//
// upstream is the HTTP client used for GitHub API calls; nil means
// http.DefaultClient. Tests pass an httptest server's client.
func New(cfg *config.Config, logger *slog.Logger, upstream *http.Client) (*Server, error) {
	state, err := auth.NewStateSigner(cfg.StateSecret)
	if err != nil {
		return nil, fmt.Errorf("creating state signer: %w", err)
	}
	if cfg.StateSecret == "" {
		logger.Warn("STATE_SECRET not set, using a random key; logins in flight across a restart will fail")
	}

	provider := auth.NewGitHubProvider(
		cfg.GitHub.ClientID,
		cfg.GitHub.ClientSecret,
		cfg.CallbackURL(),
		cfg.GitHub.AuthURL,
		cfg.GitHub.TokenURL,
	)
	gh := github.New(cfg.GitHub.APIURL, upstream)
	cookies := auth.NewCookies(cfg.Cookie)

	authService := service.NewAuthService(provider, gh, logger)
	repoService := service.NewRepoService(gh, logger)

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	s.setupRoutes(
		handler.NewAuthHandler(provider, state, cookies, authService, cfg, logger),
		handler.NewRepoHandler(repoService, logger),
		cookies,
	)
	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /                      → liveness message
// GET    /auth/github           → redirect to GitHub consent page
// GET    /auth/github/callback  → OAuth callback, delivers the credential
// GET    /auth/user             → who the credential belongs to
// GET    /auth/logout           → clear cookie, redirect to client
// GET    /repos                 → list repositories        [credential required]
// DELETE /repos/{owner}/{repo}  → delete a repository      [credential required]
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID — unique id per request, picked up by the logger
// 2. RealIP    — client IP from proxy headers
// 3. Logger    — one line per request
// 4. Recoverer — a panic becomes a 500 instead of a crash
// 5. CORS      — before routing so preflights never hit a 405
func (s *Server) setupRoutes(authHandler *handler.AuthHandler, repoHandler *handler.RepoHandler, cookies *auth.Cookies) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.CORS(s.config.ClientURL))

	s.router.Get("/", handler.HandleRoot)

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/github", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
		r.Get("/user", authHandler.HandleUser)
		r.Get("/logout", authHandler.HandleLogout)
	})

	s.router.Route("/repos", func(r chi.Router) {
		r.Use(auth.RequireCredential(cookies.Name(), handler.HandleMissingCredential))
		r.Get("/", repoHandler.HandleList)
		r.Delete("/{owner}/{repo}", repoHandler.HandleDelete)
	})
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM, then drains
// in-flight requests for up to 30 seconds.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("backendURL", s.config.BackendURL),
			slog.String("client", s.config.ClientURL),
			slog.String("env", s.config.Env),
			slog.String("tokenDelivery", string(s.config.TokenDelivery)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
