package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"secrets_app/internal/config"
	"secrets_app/internal/logger"
	"secrets_app/internal/models"

	ginsessions "github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	sessionKeyUser     = "auth_user"
	sessionKeyIssuedAt = "issued_at"
)

// ErrSessionInvalidation wraps store failures during logout.
var ErrSessionInvalidation = errors.New("session invalidation failed")

// UserLookup confirms that a user referenced by a session still exists.
type UserLookup interface {
	Lookup(ctx context.Context, id int) (models.SessionUser, error)
}

// Manager moves a client between the anonymous and authenticated states.
type Manager struct {
	name    string
	store   ginsessions.Store
	options ginsessions.Options
	users   UserLookup
	log     *logger.Logger
}

func NewManager(name string, store ginsessions.Store, opts ginsessions.Options, users UserLookup, log *logger.Logger) *Manager {
	store.Options(opts)
	return &Manager{name: name, store: store, options: opts, users: users, log: log}
}

// Name is the session cookie name.
func (m *Manager) Name() string { return m.name }

// Middleware attaches the session to every request.
func (m *Manager) Middleware() gin.HandlerFunc {
	return ginsessions.Sessions(m.name, m.store)
}

// Establish authenticates the client as u under a freshly issued identifier.
// Callers must only invoke it after the credential has been verified.
func (m *Manager) Establish(c *gin.Context, u models.SessionUser) error {
	payload, err := Serialize(u)
	if err != nil {
		return err
	}

	s := ginsessions.Default(c)
	if s.ID() != "" {
		// drop the identifier the client arrived with
		s.Clear()
		s.Options(m.expired())
		if err := s.Save(); err != nil {
			return fmt.Errorf("drop previous session: %w", err)
		}
	}

	s.Options(m.options)
	s.Set(sessionKeyUser, payload)
	s.Set(sessionKeyIssuedAt, time.Now().Unix())
	if err := s.Save(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Current restores the authenticated user. Any failure (no session,
// malformed payload, deleted user, store error) reports anonymous.
func (m *Manager) Current(c *gin.Context) (models.SessionUser, bool) {
	s := ginsessions.Default(c)
	raw, ok := s.Get(sessionKeyUser).(string)
	if !ok || raw == "" {
		return models.SessionUser{}, false
	}

	ref, err := Deserialize(raw)
	if err != nil {
		if m.log != nil {
			m.log.Warnw("session_payload_invalid", "err", err)
		}
		return models.SessionUser{}, false
	}

	if m.users != nil {
		fresh, err := m.users.Lookup(c.Request.Context(), ref.ID)
		if err != nil {
			if m.log != nil {
				m.log.Infow("session_user_unresolved", "user_id", ref.ID, "err", err)
			}
			return models.SessionUser{}, false
		}
		ref = fresh
	}
	return ref, true
}

// Active reports whether the session r arrived with still authenticates
// userID. It reads the store directly instead of the per-request cache, so a
// logout or rotation made by another request is seen.
func (m *Manager) Active(ctx context.Context, r *http.Request, userID int) bool {
	s, err := m.store.New(r.WithContext(ctx), m.name)
	if err != nil || s.IsNew {
		return false
	}
	raw, _ := s.Values[sessionKeyUser].(string)
	ref, err := Deserialize(raw)
	if err != nil || ref.ID != userID {
		return false
	}
	if m.users != nil {
		if _, err := m.users.Lookup(ctx, userID); err != nil {
			return false
		}
	}
	return true
}

// Invalidate ends the session server-side and expires the cookie.
func (m *Manager) Invalidate(c *gin.Context) error {
	s := ginsessions.Default(c)
	s.Clear()
	s.Options(m.expired())
	if err := s.Save(); err != nil {
		return fmt.Errorf("%w: %w", ErrSessionInvalidation, err)
	}
	return nil
}

func (m *Manager) expired() ginsessions.Options {
	opts := m.options
	opts.MaxAge = -1
	return opts
}

// CookieOptions returns the options applied to authenticated sessions.
func (m *Manager) CookieOptions() ginsessions.Options { return m.options }

// Flash stores a one-shot message shown on the next rendered page.
func (m *Manager) Flash(c *gin.Context, msg string) {
	s := ginsessions.Default(c)
	s.AddFlash(msg)
	if err := s.Save(); err != nil && m.log != nil {
		m.log.Warnw("session_flash_save_failed", "err", err)
	}
}

// Flashes pops pending messages.
func (m *Manager) Flashes(c *gin.Context) []string {
	s := ginsessions.Default(c)
	raw := s.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := s.Save(); err != nil && m.log != nil {
		m.log.Warnw("session_flash_save_failed", "err", err)
	}
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if msg, ok := f.(string); ok {
			out = append(out, msg)
		}
	}
	return out
}

// OptionsFrom maps the session config onto cookie options.
func OptionsFrom(cfg config.SessionConfig) ginsessions.Options {
	return ginsessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.MaxAge / time.Second),
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
