// Package sqlite implements repository.CredentialStore on a local SQLite file.
//
// It is the fallback for machines without a usable OS keychain (headless
// Linux, containers, CI). The credential is stored in plaintext, protected
// only by the file's 0600 permissions, so the keyring store is preferred
// whenever it works.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means a C compiler and painful
// cross-compilation for a CLI that ships as a single binary. modernc.org/sqlite
// is a pure Go translation of SQLite.
//
// DATABASE/SQL OVERVIEW:
//   - sql.DB   — a connection pool (NOT a single connection!)
//   - sql.Row  — a single result row
//
// The pattern is always:
//  1. sql.Open(driverName, dataSourceName) → creates a pool
//  2. db.QueryRowContext / db.ExecContext  → runs queries
//  3. row.Scan(&field1, &field2)           → reads results into Go variables
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool.
type DB struct {
	conn *sql.DB
}

// New opens (creating if needed) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "~/.config/gitsweep/gitsweep.db" → file-based database (persistent)
//   - ":memory:"                       → in-memory database (tests)
//
// sql.Open does not connect; Ping forces a connection so a bad path fails
// here instead of on the first query.
func New(dbPath string) (*DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: creating database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection: an in-memory database is per-connection, and a CLI
	// never needs more.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets a concurrent `gitsweep whoami` read while a login writes.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	if dbPath != ":memory:" {
		// The file holds a bearer credential.
		if err := os.Chmod(dbPath, 0o600); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: restricting database permissions: %w", err)
		}
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS makes it safe to run
// on every start.
//
// credentials holds one row per backend origin; profile is the JSON-encoded
// model.Profile, or NULL when only the credential is known.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			origin     TEXT PRIMARY KEY,
			credential TEXT NOT NULL,
			profile    TEXT,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating credentials table: %w", err)
	}
	return nil
}
