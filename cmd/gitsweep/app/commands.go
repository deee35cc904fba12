// Package app provides the entry point for the gitsweep command-line application.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sakif/gitsweep/internal/apperror"
	"github.com/sakif/gitsweep/internal/client"
	"github.com/sakif/gitsweep/internal/logger"
	"github.com/sakif/gitsweep/internal/model"
	"github.com/sakif/gitsweep/internal/repository"
	"github.com/sakif/gitsweep/internal/session"
)

const (
	defaultBackendURL = "http://localhost:8080"
	envPrefix         = "GITSWEEP"
)

// errNotSignedIn is returned by commands that need a session when there is none.
var errNotSignedIn = apperror.AuthMissing("Not signed in. Run `gitsweep login` first.")

// deps are the parts tests replace. Zero values mean the real thing.
type deps struct {
	httpClient  *http.Client
	store       repository.CredentialStore
	openBrowser func(url string) error
}

// cli is the state one invocation of the root command builds in
// PersistentPreRunE and the subcommands share.
type cli struct {
	v    *viper.Viper
	deps deps

	logger     *slog.Logger
	client     *client.Client
	store      repository.CredentialStore
	closeStore func() error
	resolver   *session.Resolver
}

// NewRootCmd creates the root command for the gitsweep CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(deps{})
}

func newRootCmd(d deps) *cobra.Command {
	c := &cli{v: viper.New(), deps: d}

	rootCmd := &cobra.Command{
		Use:               "gitsweep",
		DisableAutoGenTag: true,
		Short:             "gitsweep finds and deletes GitHub repositories you no longer need",
		Long: `gitsweep signs in to GitHub through a gitsweep backend, lists the repositories
you own and deletes the ones you pick, several at a time.

Your GitHub token is kept in the OS keychain when one is available and in a
local SQLite file otherwise.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return c.teardown()
		},
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error displaying help: %v\n", err)
			}
		},
	}

	// Add persistent flags
	flags := rootCmd.PersistentFlags()
	flags.String("backend-url", defaultBackendURL, "Base URL of the gitsweep backend")
	flags.String("store", storeAuto, "Where to keep the credential: auto, keyring, sqlite or memory")
	flags.String("db", "", "SQLite credential file (default: <user config dir>/gitsweep/credentials.db)")
	flags.Bool("debug", false, "Enable debug logging")

	if err := bindFlags(c.v, flags, "backend-url", "store", "db", "debug"); err != nil {
		panic(err)
	}
	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	// Add subcommands
	rootCmd.AddCommand(c.newLoginCmd())
	rootCmd.AddCommand(c.newLogoutCmd())
	rootCmd.AddCommand(c.newWhoAmICmd())
	rootCmd.AddCommand(c.newReposCmd())

	return rootCmd
}

// bindFlags binds each named flag to the viper key of the same name, so
// GITSWEEP_BACKEND_URL and friends fill in flags that were not given.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, names ...string) error {
	for _, name := range names {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

func (c *cli) setup(cmd *cobra.Command) error {
	c.logger = logger.New(cmd.ErrOrStderr(), "text", c.v.GetBool("debug"))

	var opts []client.Option
	if c.deps.httpClient != nil {
		opts = append(opts, client.WithHTTPClient(c.deps.httpClient))
	}
	apiClient, err := client.New(c.v.GetString("backend-url"), opts...)
	if err != nil {
		return err
	}
	c.client = apiClient

	if c.deps.store != nil {
		c.store, c.closeStore = c.deps.store, func() error { return nil }
	} else {
		c.store, c.closeStore, err = openStore(c.v.GetString("store"), c.v.GetString("db"), c.logger)
		if err != nil {
			return err
		}
	}

	c.resolver, err = session.New(c.client, c.store, c.logger)
	if err != nil {
		return err
	}
	c.logger.Debug("cli ready",
		slog.String("backend", c.client.BaseURL()),
		slog.String("store", c.v.GetString("store")),
	)
	return nil
}

func (c *cli) teardown() error {
	if c.closeStore == nil {
		return nil
	}
	if err := c.closeStore(); err != nil {
		return fmt.Errorf("closing credential store: %w", err)
	}
	return nil
}

// requireSession resolves the session and fails when the user is anonymous.
func (c *cli) requireSession(ctx context.Context) (*model.Session, error) {
	s, err := c.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errNotSignedIn
	}
	return s, nil
}

func (c *cli) open(url string) error {
	if c.deps.openBrowser != nil {
		return c.deps.openBrowser(url)
	}
	return browser.OpenURL(url)
}

// ErrorMessage returns the line main prints for err.
func ErrorMessage(err error) string {
	if errors.Is(err, context.Canceled) {
		return "Interrupted."
	}
	return client.Friendly(err)
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
