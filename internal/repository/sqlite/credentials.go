package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/gitsweep/internal/apperror"
	"github.com/sakif/gitsweep/internal/model"
	"github.com/sakif/gitsweep/internal/repository"
)

// compile-time check that *DB implements repository.CredentialStore
var _ repository.CredentialStore = (*DB)(nil)

// Get returns the entry for origin, or apperror.ErrNotFound.
func (db *DB) Get(ctx context.Context, origin string) (*model.StoredCredential, error) {
	var (
		cred      string
		profile   sql.NullString
		updatedAt time.Time
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT credential, profile, updated_at FROM credentials WHERE origin = ?`,
		origin,
	).Scan(&cred, &profile, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("credential", origin)
		}
		return nil, fmt.Errorf("sqlite: getting credential for %s: %w", origin, err)
	}

	entry := &model.StoredCredential{
		Credential: model.Credential(cred),
		UpdatedAt:  updatedAt,
	}
	if profile.Valid {
		var p model.Profile
		if err := json.Unmarshal([]byte(profile.String), &p); err != nil {
			return nil, fmt.Errorf("sqlite: decoding profile for %s: %w", origin, err)
		}
		entry.Profile = &p
	}
	return entry, nil
}

// Set inserts or replaces the entry for origin.
//
// INSERT ... ON CONFLICT DO UPDATE keeps it a single statement, so credential
// and profile can never be observed half-written.
func (db *DB) Set(ctx context.Context, origin string, entry *model.StoredCredential) error {
	if entry == nil || entry.Credential == "" {
		return apperror.ValidationFailed("credential", "credential must not be empty")
	}

	var profile sql.NullString
	if entry.Profile != nil {
		data, err := json.Marshal(entry.Profile)
		if err != nil {
			return fmt.Errorf("sqlite: encoding profile: %w", err)
		}
		profile = sql.NullString{String: string(data), Valid: true}
	}

	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO credentials (origin, credential, profile, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(origin) DO UPDATE SET
		   credential = excluded.credential,
		   profile    = excluded.profile,
		   updated_at = excluded.updated_at`,
		origin,
		entry.Credential.Value(),
		profile,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: storing credential for %s: %w", origin, err)
	}
	return nil
}

// Clear deletes the entry for origin. Deleting nothing is fine.
func (db *DB) Clear(ctx context.Context, origin string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM credentials WHERE origin = ?`, origin); err != nil {
		return fmt.Errorf("sqlite: clearing credential for %s: %w", origin, err)
	}
	return nil
}
