package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"secrets_app/internal/models"
	"secrets_app/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// Domain errors for auth flows.
var (
	ErrNoSuchUser            = errors.New("user not found")
	ErrBadCredential         = errors.New("invalid credentials")
	ErrDuplicateUser         = errors.New("user already exists")
	ErrFederation            = errors.New("federated sign-in failed")
	ErrStoreUnavailable      = errors.New("user store unavailable")
	ErrInvalidInput          = errors.New("username and password are required")
	ErrUnsupportedCredential = errors.New("unsupported credential")
)

// AuthService handles user auth logic
type AuthService struct {
	users repository.Users
	cost  int
}

// NewAuthService uses bcrypt.DefaultCost when cost is out of bcrypt's range.
func NewAuthService(repo repository.Users, cost int) *AuthService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &AuthService{users: repo, cost: cost}
}

// Register hashes password and creates a new local user.
func (s *AuthService) Register(ctx context.Context, username, password string) (models.SessionUser, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return models.SessionUser{}, ErrInvalidInput
	}

	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return models.SessionUser{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if existing != nil {
		return models.SessionUser{}, ErrDuplicateUser
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return models.SessionUser{}, err
	}

	id, err := s.users.Create(ctx, username, hash)
	if err != nil {
		// a concurrent registration won the UNIQUE constraint
		if errors.Is(err, repository.ErrDuplicate) {
			return models.SessionUser{}, ErrDuplicateUser
		}
		return models.SessionUser{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	return models.User{ID: id, Username: username}.Ref(), nil
}

// Verify checks a username/password pair.
func (s *AuthService) Verify(ctx context.Context, username, password string) (models.SessionUser, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return models.SessionUser{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if u == nil {
		return models.SessionUser{}, ErrNoSuchUser
	}
	// Google-only accounts have no local password
	if u.PasswordHash == "" {
		return models.SessionUser{}, ErrBadCredential
	}
	if err := verifyPassword(u.PasswordHash, password); err != nil {
		return models.SessionUser{}, ErrBadCredential
	}
	return u.Ref(), nil
}

// ResolveGoogle finds or creates the user bound to the Google subject.
func (s *AuthService) ResolveGoogle(ctx context.Context, p models.GoogleProfile) (models.SessionUser, error) {
	if strings.TrimSpace(p.Subject) == "" {
		return models.SessionUser{}, fmt.Errorf("%w: missing subject", ErrFederation)
	}

	u, _, err := s.users.FindOrCreateGoogle(ctx, models.User{
		GoogleID:    p.Subject,
		Email:       p.Email,
		DisplayName: firstNonEmpty(p.Name, p.Email, p.Subject),
	})
	if err != nil {
		return models.SessionUser{}, fmt.Errorf("%w: %w: %w", ErrFederation, ErrStoreUnavailable, err)
	}
	if u == nil {
		return models.SessionUser{}, fmt.Errorf("%w: account not resolved", ErrFederation)
	}
	return u.Ref(), nil
}

// Authenticate dispatches to the strategy matching cred.
func (s *AuthService) Authenticate(ctx context.Context, cred Credential) (models.SessionUser, error) {
	switch c := cred.(type) {
	case LocalCredential:
		return s.Verify(ctx, c.Username, c.Password)
	case GoogleFederated:
		return s.ResolveGoogle(ctx, c.Profile)
	default:
		return models.SessionUser{}, fmt.Errorf("%w: %T", ErrUnsupportedCredential, cred)
	}
}

// Lookup returns the session projection of a stored user.
func (s *AuthService) Lookup(ctx context.Context, id int) (models.SessionUser, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return models.SessionUser{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if u == nil {
		return models.SessionUser{}, ErrNoSuchUser
	}
	return u.Ref(), nil
}

// helper: hash password safely
func (s *AuthService) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// helper: verify password against hash
func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
