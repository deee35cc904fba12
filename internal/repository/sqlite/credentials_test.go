package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sakif/gitsweep/internal/model"
	"github.com/sakif/gitsweep/internal/repository"
	"github.com/sakif/gitsweep/internal/repository/repositorytest"
)

// newTestDB creates an in-memory SQLite database for testing.
// Each test gets a fresh database; it is gone when the connection closes.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCredentialStore(t *testing.T) {
	repositorytest.Run(t, func(t *testing.T) repository.CredentialStore {
		return newTestDB(t)
	})
}

func TestNew_FileSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "gitsweep.db")
	ctx := context.Background()

	db, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := db.Set(ctx, "http://localhost:8080", &model.StoredCredential{Credential: "gho_abc"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	db.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("database permissions = %o, want 600", perm)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("New() reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, "http://localhost:8080")
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if got.Credential != "gho_abc" {
		t.Errorf("Get() credential = %v, want gho_abc", got.Credential)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
}
