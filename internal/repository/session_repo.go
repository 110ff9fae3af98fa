package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	selectSessionSQL         = `SELECT data, expires_at FROM sessions WHERE id = ?`
	upsertSessionSQL         = `INSERT INTO sessions (id, data, expires_at) VALUES (?, ?, ?) ON CONFLICT(id) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`
	deleteSessionSQL         = `DELETE FROM sessions WHERE id = ?`
	deleteExpiredSessionsSQL = `DELETE FROM sessions WHERE expires_at <= ?`
)

// SessionSQLite keeps server-side session records in the sessions table.
type SessionSQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewSessionSQLite(db *sql.DB) *SessionSQLite {
	return &SessionSQLite{db: db, now: time.Now}
}

// Load returns the stored payload. Missing and expired records both yield
// (nil, nil).
func (r *SessionSQLite) Load(ctx context.Context, id string) ([]byte, error) {
	var (
		data      []byte
		expiresAt int64
	)
	err := r.db.QueryRowContext(ctx, selectSessionSQL, id).Scan(&data, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select session: %w", err)
	}
	if expiresAt <= r.now().Unix() {
		return nil, nil
	}
	return data, nil
}

// Save inserts or replaces the record, expiring ttl from now.
func (r *SessionSQLite) Save(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	expiresAt := r.now().Add(ttl).Unix()
	if _, err := r.db.ExecContext(ctx, upsertSessionSQL, id, data, expiresAt); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (r *SessionSQLite) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, deleteSessionSQL, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired purges records whose expiry has passed and reports how many
// were removed.
func (r *SessionSQLite) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteExpiredSessionsSQL, r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
