// Package keyring implements repository.CredentialStore on the OS keychain
// (macOS Keychain, Windows Credential Manager, Secret Service on Linux).
//
// Each backend origin is one keychain item under the "gitsweep" service; the
// item's secret is the JSON-encoded model.StoredCredential.
package keyring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/sakif/gitsweep/internal/apperror"
	"github.com/sakif/gitsweep/internal/model"
	"github.com/sakif/gitsweep/internal/repository"
)

const (
	serviceName = "gitsweep"
	probeKey    = "gitsweep::probe"
)

// compile-time check that *Store implements repository.CredentialStore
var _ repository.CredentialStore = (*Store)(nil)

// Store keeps credentials in the OS keychain.
type Store struct{}

// New returns a keychain-backed store. Call Probe first to find out whether
// the keychain is usable on this machine.
func New() *Store {
	return &Store{}
}

// Probe reports whether the keychain accepts writes, by writing and deleting a
// throwaway item. Headless Linux without a Secret Service fails here.
func Probe() error {
	if err := keyring.Set(serviceName, probeKey, "probe"); err != nil {
		return fmt.Errorf("keyring: unavailable: %w", err)
	}
	_ = keyring.Delete(serviceName, probeKey)
	return nil
}

func key(origin string) string {
	return "gitsweep::" + origin
}

// Get returns the entry for origin, or apperror.ErrNotFound.
func (s *Store) Get(_ context.Context, origin string) (*model.StoredCredential, error) {
	data, err := keyring.Get(serviceName, key(origin))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, apperror.NotFound("credential", origin)
		}
		return nil, fmt.Errorf("keyring: reading credential for %s: %w", origin, err)
	}

	var entry model.StoredCredential
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("keyring: decoding credential for %s: %w", origin, err)
	}
	return &entry, nil
}

// Set stores credential and profile as one keychain item, replacing any
// previous one.
func (s *Store) Set(_ context.Context, origin string, entry *model.StoredCredential) error {
	if entry == nil || entry.Credential == "" {
		return apperror.ValidationFailed("credential", "credential must not be empty")
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("keyring: encoding credential: %w", err)
	}
	if err := keyring.Set(serviceName, key(origin), string(data)); err != nil {
		return fmt.Errorf("keyring: storing credential for %s: %w", origin, err)
	}
	return nil
}

// Clear removes the keychain item for origin, if any.
func (s *Store) Clear(_ context.Context, origin string) error {
	err := keyring.Delete(serviceName, key(origin))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring: clearing credential for %s: %w", origin, err)
	}
	return nil
}
