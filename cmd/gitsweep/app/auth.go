package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/gitsweep/internal/apperror"
	"github.com/sakif/gitsweep/internal/model"
	"github.com/sakif/gitsweep/internal/session"
)

// defaultListen is the host:port of the backend's default CLIENT URL.
const defaultListen = "localhost:5173"

func (c *cli) newLoginCmd() *cobra.Command {
	var (
		token     string
		noBrowser bool
		listen    string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with GitHub",
		Long: `Sign in with GitHub through the gitsweep backend.

Without --token, gitsweep listens on --listen (the backend's CLIENT address),
opens the backend's GitHub login page and waits for the backend to redirect the
browser back with a token. This needs a backend running with TOKEN_DELIVERY=query.

With --token, the given GitHub token is checked against the backend and stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if token != "" {
				s, err := c.resolver.Login(ctx, model.Credential(token))
				if err != nil {
					return err
				}
				fmt.Fprintf(out(cmd), "Signed in as %s.\n", s.Profile.Login)
				return nil
			}

			cb, err := session.ListenCallback(listen, c.resolver, c.logger)
			if err != nil {
				return err
			}
			defer cb.Close()

			loginURL := c.client.BaseURL() + "/auth/github"
			if noBrowser {
				fmt.Fprintf(out(cmd), "Open this URL in your browser to sign in:\n  %s\n", loginURL)
			} else if err := c.open(loginURL); err != nil {
				c.logger.Warn("failed to open browser", slog.String("error", err.Error()))
				fmt.Fprintf(out(cmd), "Please open this URL in your browser:\n  %s\n", loginURL)
			}
			fmt.Fprintln(out(cmd), "Waiting for GitHub sign-in to finish in your browser...")

			s, err := cb.Wait(ctx)
			if err != nil {
				if errors.Is(err, session.ErrCookieDelivery) {
					return fmt.Errorf("this backend keeps the token in a browser cookie, "+
						"so run `gitsweep login --token <token>` with a GitHub token instead: %w", err)
				}
				return err
			}
			fmt.Fprintf(out(cmd), "Signed in as %s.\n", s.Profile.Login)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "GitHub token to sign in with, skipping the browser")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the login URL instead of opening a browser")
	cmd.Flags().StringVar(&listen, "listen", defaultListen, "Address to receive the login redirect on")
	return cmd
}

func (c *cli) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := c.resolver.Logout(cmd.Context())

			// An AppError comes from the backend call; the local credential
			// is already gone by then.
			var appErr *apperror.AppError
			if err != nil && !errors.As(err, &appErr) {
				return err
			}
			if err != nil {
				c.logger.Warn("backend logout failed", slog.String("error", err.Error()))
			}
			fmt.Fprintln(out(cmd), "Signed out.")
			return nil
		},
	}
}

func (c *cli) newWhoAmICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in GitHub account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := c.requireSession(cmd.Context())
			if err != nil {
				return err
			}

			p := s.Profile
			if p.Name != "" && p.Name != p.Login {
				fmt.Fprintf(out(cmd), "%s (%s)\n", p.Login, p.Name)
			} else {
				fmt.Fprintln(out(cmd), p.Login)
			}
			if p.HTMLURL != "" {
				fmt.Fprintln(out(cmd), p.HTMLURL)
			}
			return nil
		},
	}
}
