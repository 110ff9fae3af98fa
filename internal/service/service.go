package service

import (
	"context"

	"secrets_app/internal/models"
	"secrets_app/internal/repository"
)

type Authorization interface {
	Register(ctx context.Context, username, password string) (models.SessionUser, error)
	Verify(ctx context.Context, username, password string) (models.SessionUser, error)
	ResolveGoogle(ctx context.Context, p models.GoogleProfile) (models.SessionUser, error)
	Authenticate(ctx context.Context, cred Credential) (models.SessionUser, error)
	Lookup(ctx context.Context, id int) (models.SessionUser, error)
}

// EventLog exposes the append-only authentication activity log.
type EventLog interface {
	Record(ctx context.Context, e models.AuthEvent) error
	List(ctx context.Context, f LogFilter) ([]models.AuthEvent, error)
}

// Service aggregates all sub-services.
type Service struct {
	Authorization
	EventLog
}

func NewService(repos *repository.Repository, bcryptCost int) *Service {
	return &Service{
		Authorization: NewAuthService(repos.Users, bcryptCost),
		EventLog:      NewEventLogService(repos.Events),
	}
}
