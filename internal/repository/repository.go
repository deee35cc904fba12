// Package repository defines the Credential Store: durable client-side storage
// for the bearer credential and the profile it resolves to.
//
// Entries are keyed by the normalized backend origin (see Key), so one machine
// can hold sessions for several deployments and at most one credential is
// active per origin.
//
// Implementations:
//   - keyring: OS keychain via github.com/zalando/go-keyring (preferred)
//   - sqlite:  a local SQLite file, for machines without a keychain
//   - memory:  process-local, for tests and --store memory
//
// Clearing the store never touches the backend's cookie; that takes an
// explicit logout call.
package repository

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sakif/gitsweep/internal/model"
)

// CredentialStore persists one StoredCredential per backend origin.
type CredentialStore interface {
	// Get returns the stored entry. apperror.ErrNotFound means "unknown":
	// the caller should fall back to asking the backend.
	Get(ctx context.Context, key string) (*model.StoredCredential, error)

	// Set writes credential and profile together, replacing any previous entry.
	Set(ctx context.Context, key string, entry *model.StoredCredential) error

	// Clear removes the entry. Clearing an absent entry is not an error.
	Clear(ctx context.Context, key string) error
}

// Key normalizes a backend URL to its origin: lowercase scheme://host[:port],
// default ports dropped, no path.
func Key(backendURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(backendURL))
	if err != nil {
		return "", fmt.Errorf("repository: parsing backend URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("repository: backend URL %q must be absolute", backendURL)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	return scheme + "://" + host, nil
}
