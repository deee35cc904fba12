package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/gitsweep/internal/repository"
	"github.com/sakif/gitsweep/internal/repository/keyring"
	"github.com/sakif/gitsweep/internal/repository/memory"
	"github.com/sakif/gitsweep/internal/repository/sqlite"
)

const (
	storeAuto    = "auto"
	storeKeyring = "keyring"
	storeSQLite  = "sqlite"
	storeMemory  = "memory"
)

// openStore returns the credential store named by kind and its closer.
// auto prefers the OS keychain and falls back to SQLite when the keychain
// does not accept writes.
func openStore(kind, dbPath string, logger *slog.Logger) (repository.CredentialStore, func() error, error) {
	noop := func() error { return nil }

	switch kind {
	case storeMemory:
		return memory.New(), noop, nil
	case storeKeyring:
		if err := keyring.Probe(); err != nil {
			return nil, nil, err
		}
		return keyring.New(), noop, nil
	case storeAuto, "":
		err := keyring.Probe()
		if err == nil {
			return keyring.New(), noop, nil
		}
		logger.Debug("keychain unavailable, using sqlite", slog.String("error", err.Error()))
		fallthrough
	case storeSQLite:
		path, err := resolveDBPath(dbPath)
		if err != nil {
			return nil, nil, err
		}
		db, err := sqlite.New(path)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown --store %q (want auto, keyring, sqlite or memory)", kind)
	}
}

func resolveDBPath(dbPath string) (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config directory (set --db): %w", err)
	}
	return filepath.Join(dir, "gitsweep", "credentials.db"), nil
}
