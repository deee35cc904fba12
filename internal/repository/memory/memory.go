// Package memory implements repository.CredentialStore in process memory.
// Nothing survives the process; it backs tests and `--store memory`.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sakif/gitsweep/internal/apperror"
	"github.com/sakif/gitsweep/internal/model"
	"github.com/sakif/gitsweep/internal/repository"
)

var _ repository.CredentialStore = (*Store)(nil)

// Store is a mutex-guarded map of origin to entry.
type Store struct {
	mu      sync.Mutex
	entries map[string]model.StoredCredential
}

func New() *Store {
	return &Store{entries: make(map[string]model.StoredCredential)}
}

func (s *Store) Get(_ context.Context, origin string) (*model.StoredCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[origin]
	if !ok {
		return nil, apperror.NotFound("credential", origin)
	}
	if entry.Profile != nil {
		p := *entry.Profile
		entry.Profile = &p
	}
	return &entry, nil
}

func (s *Store) Set(_ context.Context, origin string, entry *model.StoredCredential) error {
	if entry == nil || entry.Credential == "" {
		return apperror.ValidationFailed("credential", "credential must not be empty")
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}

	stored := *entry
	if entry.Profile != nil {
		p := *entry.Profile
		stored.Profile = &p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[origin] = stored
	return nil
}

func (s *Store) Clear(_ context.Context, origin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, origin)
	return nil
}
