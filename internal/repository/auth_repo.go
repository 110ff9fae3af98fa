package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"secrets_app/internal/models"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Ensure implementation of Users interface at compile time.
var _ Users = (*UserRepository)(nil)

const (
	userColumns = `id, username, password_hash, google_id, email, display_name`

	insertUserSQL           = `INSERT INTO users (username, password_hash, display_name) VALUES (?, ?, ?)`
	selectUserByIDSQL       = `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	selectUserByUsernameSQL = `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	selectUserByGoogleIDSQL = `SELECT ` + userColumns + ` FROM users WHERE google_id = ?`
	insertGoogleUserSQL     = `INSERT INTO users (google_id, email, display_name) VALUES (?, ?, ?) ON CONFLICT(google_id) DO NOTHING`
)

// Create inserts a new local user and returns its ID.
// A taken username yields ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, username, passwordHash string) (int, error) {
	res, err := r.db.ExecContext(ctx, insertUserSQL, username, passwordHash, username)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert user %q: %w", username, ErrDuplicate)
		}
		return 0, fmt.Errorf("insert user %q: %w", username, err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id for user %q: %w", username, err)
	}
	return int(lastID), nil
}

// GetByID fetches a user by id. Returns (nil, nil) if not found.
func (r *UserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, selectUserByIDSQL, id))
	if err != nil {
		return nil, fmt.Errorf("select user %d: %w", id, err)
	}
	return u, nil
}

// GetByUsername fetches a user by username. Returns (nil, nil) if not found.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, selectUserByUsernameSQL, username))
	if err != nil {
		return nil, fmt.Errorf("select user %q: %w", username, err)
	}
	return u, nil
}

// FindOrCreateGoogle returns the user bound to u.GoogleID, inserting it first
// when absent. The insert relies on the UNIQUE google_id constraint, so
// concurrent first logins for the same subject converge on one row.
// The bool result reports whether this call created the row.
func (r *UserRepository) FindOrCreateGoogle(ctx context.Context, u models.User) (*models.User, bool, error) {
	if u.GoogleID == "" {
		return nil, false, errors.New("google id is empty")
	}

	res, err := r.db.ExecContext(ctx, insertGoogleUserSQL, u.GoogleID, nullString(u.Email), nullString(u.DisplayName))
	if err != nil {
		return nil, false, fmt.Errorf("insert google user %q: %w", u.GoogleID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected for google user %q: %w", u.GoogleID, err)
	}

	found, err := scanUser(r.db.QueryRowContext(ctx, selectUserByGoogleIDSQL, u.GoogleID))
	if err != nil {
		return nil, false, fmt.Errorf("select google user %q: %w", u.GoogleID, err)
	}
	if found == nil {
		return nil, false, fmt.Errorf("google user %q vanished after insert", u.GoogleID)
	}
	return found, affected > 0, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var username, hash, googleID, email, display sql.NullString
	err := row.Scan(&u.ID, &username, &hash, &googleID, &email, &display)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Username = username.String
	u.PasswordHash = hash.String
	u.GoogleID = googleID.String
	u.Email = email.String
	u.DisplayName = display.String
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			// primary result code only; fall back to the message
			return strings.Contains(se.Error(), "UNIQUE")
		}
	}
	return false
}
