package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens/creates a SQLite DB file and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// Conservative pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is not great with many writers
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Fail fast if the DB cannot be reached
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

// username and google_id are both optional; UNIQUE still holds because
// SQLite treats NULLs as distinct.
const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE,
    password_hash TEXT,
    google_id TEXT UNIQUE,
    email TEXT,
    display_name TEXT,
    CHECK (username IS NOT NULL OR google_id IS NOT NULL)
);
`

const schemaAuthEvents = `
CREATE TABLE IF NOT EXISTS auth_events (
    id TEXT PRIMARY KEY,
    occurred_at TIMESTAMP NOT NULL,
    type TEXT NOT NULL,
    user_id INTEGER NOT NULL DEFAULT 0,
    username TEXT NOT NULL,
    message TEXT NOT NULL,
    meta TEXT
);
`

const indexAuthEvents = `
CREATE INDEX IF NOT EXISTS idx_auth_events_user_time ON auth_events (user_id, occurred_at);
`

const schemaSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    data BLOB NOT NULL,
    expires_at INTEGER NOT NULL
);
`

const indexSessions = `
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions (expires_at);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		// In case of panic, rollback to avoid leaving an open transaction
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{schemaUsers, schemaAuthEvents} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	if err := addEventOwnerColumn(tx); err != nil {
		return err
	}
	for i, stmt := range []string{indexAuthEvents, schemaSessions, indexSessions} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+3, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}

// addEventOwnerColumn upgrades auth_events tables created before events
// carried user_id. Rows written earlier stay unowned.
func addEventOwnerColumn(tx *sql.Tx) error {
	var n int
	err := tx.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('auth_events') WHERE name = 'user_id'`).Scan(&n)
	if err != nil {
		return fmt.Errorf("inspect auth_events: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := tx.Exec(`ALTER TABLE auth_events ADD COLUMN user_id INTEGER NOT NULL DEFAULT 0`); err != nil {
		return fmt.Errorf("add auth_events.user_id: %w", err)
	}
	return nil
}
