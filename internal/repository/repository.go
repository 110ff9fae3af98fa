package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"secrets_app/internal/models"
)

// ErrDuplicate is returned when an insert violates a UNIQUE constraint.
var ErrDuplicate = errors.New("duplicate record")

type Users interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	FindOrCreateGoogle(ctx context.Context, u models.User) (*models.User, bool, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.AuthEvent) error
	List(ctx context.Context, q EventQuery) ([]models.AuthEvent, error)
}

// EventQuery filters List. Zero values disable the corresponding filter.
type EventQuery struct {
	From     time.Time
	To       time.Time
	Type     string
	UserID   int
	Username string
	Limit    int
}

type Repository struct {
	Users    Users
	Events   EventRepo
	Sessions *SessionSQLite
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Users:    NewUserRepository(db),
		Events:   NewEventSQLite(db),
		Sessions: NewSessionSQLite(db),
	}
}
