package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"secrets_app/internal/config"
	"secrets_app/internal/logger"
	"secrets_app/internal/models"

	ginsessions "github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testCookie = "test_session"

type fakeLookup map[int]models.SessionUser

func (f fakeLookup) Lookup(_ context.Context, id int) (models.SessionUser, error) {
	u, ok := f[id]
	if !ok {
		return models.SessionUser{}, errors.New("no such user")
	}
	return u, nil
}

type failingDelete struct {
	*MemoryBackend
}

func (f failingDelete) Delete(context.Context, string) error { return errors.New("store down") }

func newTestManager(backend Backend, users UserLookup) *Manager {
	store := NewStore(backend, []byte("0123456789abcdef0123456789abcdef"))
	return NewManager(testCookie, store, ginsessions.Options{
		Path:     "/",
		MaxAge:   3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}, users, nil)
}

func newTestEngine(m *Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/establish/:id", func(c *gin.Context) {
		id, _ := strconv.Atoi(c.Param("id"))
		if err := m.Establish(c, models.SessionUser{ID: id, Username: "u" + c.Param("id")}); err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		c.Status(http.StatusNoContent)
	})
	r.GET("/whoami", func(c *gin.Context) {
		u, ok := m.Current(c)
		if !ok {
			c.Status(http.StatusUnauthorized)
			return
		}
		c.String(http.StatusOK, u.Username)
	})
	r.GET("/logout", func(c *gin.Context) {
		if err := m.Invalidate(c); err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	r.ServeHTTP(w, req)
	return w
}

// lastCookie returns the final Set-Cookie for the session name, which is
// what a browser keeps when several are sent.
func lastCookie(w *httptest.ResponseRecorder) *http.Cookie {
	var found *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == testCookie {
			found = c
		}
	}
	return found
}

func TestManager_EstablishCurrentInvalidate(t *testing.T) {
	users := fakeLookup{7: {ID: 7, Username: "alice", DisplayName: "Alice"}}
	backend := NewMemoryBackend()
	r := newTestEngine(newTestManager(backend, users))

	w := do(r, "/whoami", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, lastCookie(w), "anonymous requests must not create sessions")
	assert.Zero(t, backend.Len())

	w = do(r, "/establish/7", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	cookie := lastCookie(w)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 3600, cookie.MaxAge)
	assert.Equal(t, 1, backend.Len())

	w = do(r, "/whoami", cookie)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", w.Body.String(), "identity comes from the user store")

	w = do(r, "/logout", cookie)
	require.Equal(t, http.StatusNoContent, w.Code)
	if expired := lastCookie(w); assert.NotNil(t, expired) {
		assert.Less(t, expired.MaxAge, 0)
	}
	assert.Zero(t, backend.Len())

	w = do(r, "/whoami", cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "old identifier must be anonymous after logout")
}

func TestManager_EstablishRotatesIdentifier(t *testing.T) {
	users := fakeLookup{1: {ID: 1, Username: "u1"}, 2: {ID: 2, Username: "u2"}}
	backend := NewMemoryBackend()
	r := newTestEngine(newTestManager(backend, users))

	first := lastCookie(do(r, "/establish/1", nil))
	require.NotNil(t, first)

	second := lastCookie(do(r, "/establish/2", first))
	require.NotNil(t, second)
	assert.NotEqual(t, first.Value, second.Value)
	assert.Equal(t, 1, backend.Len())

	assert.Equal(t, http.StatusUnauthorized, do(r, "/whoami", first).Code)
	w := do(r, "/whoami", second)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u2", w.Body.String())
}

func TestManager_CurrentDegradesToAnonymous(t *testing.T) {
	backend := NewMemoryBackend()
	users := fakeLookup{1: {ID: 1, Username: "u1"}}
	r := newTestEngine(newTestManager(backend, users))
	cookie := lastCookie(do(r, "/establish/1", nil))
	require.NotNil(t, cookie)

	t.Run("tampered cookie", func(t *testing.T) {
		bad := *cookie
		bad.Value = "x" + bad.Value[1:]
		assert.Equal(t, http.StatusUnauthorized, do(r, "/whoami", &bad).Code)
	})

	t.Run("cookie signed with another key", func(t *testing.T) {
		other := newTestEngine(NewManager(testCookie,
			NewStore(backend, []byte("another-key-another-key-another!!")),
			ginsessions.Options{Path: "/", MaxAge: 3600}, users, nil))
		assert.Equal(t, http.StatusUnauthorized, do(other, "/whoami", cookie).Code)
	})

	t.Run("deleted user", func(t *testing.T) {
		delete(users, 1)
		assert.Equal(t, http.StatusUnauthorized, do(r, "/whoami", cookie).Code)
	})

	t.Run("expired record", func(t *testing.T) {
		users[1] = models.SessionUser{ID: 1, Username: "u1"}
		backend.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { backend.now = time.Now }()
		assert.Equal(t, http.StatusUnauthorized, do(r, "/whoami", cookie).Code)
	})
}

func TestManager_InvalidateStoreFailure(t *testing.T) {
	backend := failingDelete{NewMemoryBackend()}
	r := newTestEngine(newTestManager(backend, fakeLookup{1: {ID: 1}}))

	cookie := lastCookie(do(r, "/establish/1", nil))
	require.NotNil(t, cookie)

	w := do(r, "/logout", cookie)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), ErrSessionInvalidation.Error())
}

func TestManager_EstablishRejectsInvalidUser(t *testing.T) {
	r := newTestEngine(newTestManager(NewMemoryBackend(), nil))
	w := do(r, "/establish/0", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Nil(t, lastCookie(w))
}

func TestMemoryBackend_DeleteExpired(t *testing.T) {
	m := NewMemoryBackend()
	now := time.Unix(1_000, 0)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Save(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, m.Save(ctx, "b", []byte("2"), time.Hour))
	now = now.Add(time.Minute)

	n, err := m.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 1, m.Len())
}

func TestRunReaper_StopsOnCancel(t *testing.T) {
	m := NewMemoryBackend()
	require.NoError(t, m.Save(context.Background(), "a", []byte("1"), time.Nanosecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunReaper(ctx, m, 5*time.Millisecond, nil)
		close(done)
	}()

	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}

func TestOptionsFrom(t *testing.T) {
	opts := OptionsFrom(config.SessionConfig{MaxAge: 24 * time.Hour, Secure: true})
	assert.Equal(t, 86400, opts.MaxAge)
	assert.True(t, opts.Secure)
	assert.True(t, opts.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, opts.SameSite)
	assert.Equal(t, "/", opts.Path)
}

func TestFlash_OneShot(t *testing.T) {
	m := newTestManager(NewMemoryBackend(), fakeLookup{})
	r := newTestEngine(m)
	r.GET("/flash", func(c *gin.Context) {
		m.Flash(c, "hello")
		c.Status(http.StatusNoContent)
	})
	r.GET("/read", func(c *gin.Context) {
		c.JSON(http.StatusOK, m.Flashes(c))
	})

	w := do(r, "/flash", nil)
	cookie := lastCookie(w)
	require.NotNil(t, cookie)

	w = do(r, "/read", cookie)
	assert.JSONEq(t, `["hello"]`, w.Body.String())
	if next := lastCookie(w); next != nil {
		cookie = next
	}

	w = do(r, "/read", cookie)
	assert.Equal(t, "null", w.Body.String())

	// a flash-only session is still anonymous
	assert.Equal(t, http.StatusUnauthorized, do(r, "/whoami", cookie).Code)
}

type failingLoad struct {
	*MemoryBackend
}

func (f failingLoad) Load(context.Context, string) ([]byte, error) { return nil, errors.New("store down") }

func observedLogger() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &logger.Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}

func TestStore_NewTreatsUnusableCookieAsAnonymous(t *testing.T) {
	backend := NewMemoryBackend()
	m := newTestManager(backend, fakeLookup{1: {ID: 1}})
	cookie := lastCookie(do(newTestEngine(m), "/establish/1", nil))
	require.NotNil(t, cookie)

	cases := []struct {
		name    string
		backend Backend
		value   string
		logged  string
	}{
		{"tampered", backend, "x" + cookie.Value[1:], "session_cookie_discarded"},
		{"foreign key", backend, cookie.Value, "session_cookie_discarded"},
		{"backend down", failingLoad{backend}, cookie.Value, "session_load_failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key := []byte("0123456789abcdef0123456789abcdef")
			if tc.name == "foreign key" {
				key = []byte("another-key-another-key-another!!")
			}
			log, logs := observedLogger()
			store := NewStore(tc.backend, key).WithLogger(log)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: testCookie, Value: tc.value})
			s, err := store.New(req, testCookie)
			require.NoError(t, err)
			assert.True(t, s.IsNew)
			assert.Empty(t, s.ID)
			assert.Empty(t, s.Values)
			assert.Equal(t, 1, logs.FilterMessage(tc.logged).Len())
		})
	}
}

func TestManager_ActiveFollowsStore(t *testing.T) {
	users := fakeLookup{1: {ID: 1, Username: "u1"}}
	m := newTestManager(NewMemoryBackend(), users)
	r := newTestEngine(m)
	cookie := lastCookie(do(r, "/establish/1", nil))
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.AddCookie(cookie)
	ctx := context.Background()

	assert.True(t, m.Active(ctx, req, 1))
	assert.False(t, m.Active(ctx, req, 2), "session belongs to another user")

	delete(users, 1)
	assert.False(t, m.Active(ctx, req, 1), "deleted user")
	users[1] = models.SessionUser{ID: 1, Username: "u1"}

	require.Equal(t, http.StatusNoContent, do(r, "/logout", cookie).Code)
	assert.False(t, m.Active(ctx, req, 1), "logged out elsewhere")

	assert.False(t, m.Active(ctx, httptest.NewRequest(http.MethodGet, "/ws", nil), 1), "no cookie")
}
