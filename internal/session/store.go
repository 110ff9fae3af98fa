package session

import (
	"context"
	"encoding/base32"
	"encoding/gob"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"secrets_app/internal/logger"

	ginsessions "github.com/gin-contrib/sessions"
	"github.com/gorilla/securecookie"
	gsessions "github.com/gorilla/sessions"
)

// Backend persists encoded session values by identifier. Load returns
// (nil, nil) for unknown or expired identifiers.
type Backend interface {
	Load(ctx context.Context, id string) ([]byte, error)
	Save(ctx context.Context, id string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// Store is a server-side session store. The cookie only carries the
// identifier, signed with the configured keys; values live in the Backend.
type Store struct {
	backend Backend
	codecs  []securecookie.Codec
	options *gsessions.Options
	log     *logger.Logger
}

var _ ginsessions.Store = (*Store)(nil)

func init() {
	// flash messages are kept as []interface{} under the values map
	gob.Register([]interface{}{})
}

// NewStore takes key pairs in the securecookie order: hash key, then an
// optional block key, repeated for rotation.
func NewStore(backend Backend, keyPairs ...[]byte) *Store {
	s := &Store{
		backend: backend,
		codecs:  securecookie.CodecsFromPairs(keyPairs...),
		options: &gsessions.Options{Path: "/", MaxAge: 86400 * 30, HttpOnly: true},
	}
	s.maxAge(s.options.MaxAge)
	return s
}

// WithLogger reports discarded cookies and backend read failures to log.
func (s *Store) WithLogger(log *logger.Logger) *Store {
	s.log = log
	return s
}

// Options sets the defaults copied into every new session.
func (s *Store) Options(opts ginsessions.Options) {
	s.options = opts.ToGorillaOptions()
	s.maxAge(s.options.MaxAge)
}

func (s *Store) maxAge(age int) {
	if age <= 0 {
		return
	}
	for _, codec := range s.codecs {
		if sc, ok := codec.(*securecookie.SecureCookie); ok {
			sc.MaxAge(age)
		}
	}
}

// Get returns the session cached for this request or loads it.
func (s *Store) Get(r *http.Request, name string) (*gsessions.Session, error) {
	return gsessions.GetRegistry(r).Get(s, name)
}

// New loads the session referenced by the request cookie. An identifier the
// backend does not know is discarded, so a client can never choose its own.
// A cookie that cannot be used yields a fresh session and a nil error.
func (s *Store) New(r *http.Request, name string) (*gsessions.Session, error) {
	session := gsessions.NewSession(s, name)
	opts := *s.options
	session.Options = &opts
	session.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}
	if err := securecookie.DecodeMulti(name, c.Value, &session.ID, s.codecs...); err != nil {
		session.ID = ""
		if s.log != nil {
			s.log.Debugw("session_cookie_discarded", "err", err)
		}
		return session, nil
	}

	found, err := s.load(r.Context(), session)
	if err != nil && s.log != nil {
		s.log.Errorw("session_load_failed", "err", err)
	}
	if err != nil || !found {
		session.ID = ""
		clear(session.Values)
		return session, nil
	}
	session.IsNew = false
	return session, nil
}

// Save persists the session, or deletes it when MaxAge <= 0. After
// deletion the session has no identifier; saving it again issues a new one.
func (s *Store) Save(r *http.Request, w http.ResponseWriter, session *gsessions.Session) error {
	ctx := r.Context()

	if session.Options.MaxAge <= 0 {
		if session.ID != "" {
			if err := s.backend.Delete(ctx, session.ID); err != nil {
				return err
			}
		}
		session.ID = ""
		http.SetCookie(w, gsessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		id, err := newSessionID()
		if err != nil {
			return err
		}
		session.ID = id
	}

	encoded, err := securecookie.EncodeMulti(session.Name(), session.Values, s.codecs...)
	if err != nil {
		return fmt.Errorf("encode session values: %w", err)
	}
	ttl := time.Duration(session.Options.MaxAge) * time.Second
	if err := s.backend.Save(ctx, session.ID, []byte(encoded), ttl); err != nil {
		return err
	}

	cookieValue, err := securecookie.EncodeMulti(session.Name(), session.ID, s.codecs...)
	if err != nil {
		return fmt.Errorf("encode session id: %w", err)
	}
	http.SetCookie(w, gsessions.NewCookie(session.Name(), cookieValue, session.Options))
	session.IsNew = false
	return nil
}

func (s *Store) load(ctx context.Context, session *gsessions.Session) (bool, error) {
	data, err := s.backend.Load(ctx, session.ID)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := securecookie.DecodeMulti(session.Name(), string(data), &session.Values, s.codecs...); err != nil {
		return false, fmt.Errorf("decode session values: %w", err)
	}
	return true, nil
}

func newSessionID() (string, error) {
	key := securecookie.GenerateRandomKey(32)
	if key == nil {
		return "", errors.New("generate session id")
	}
	return strings.TrimRight(base32.StdEncoding.EncodeToString(key), "="), nil
}
