package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"secrets_app/internal/models"
	"secrets_app/internal/service"
	"secrets_app/internal/session"

	ginsessions "github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	mu sync.Mutex

	registerUser models.SessionUser
	registerErr  error
	authUser     models.SessionUser
	authErr      error

	known map[int]models.SessionUser

	lastRegisterUsername string
	lastRegisterPassword string
	lastCred             service.Credential
	authCalls            int
}

func (m *mockAuth) remember(u models.SessionUser) {
	if m.known == nil {
		m.known = map[int]models.SessionUser{}
	}
	m.known[u.ID] = u
}

func (m *mockAuth) Register(_ context.Context, username, password string) (models.SessionUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRegisterUsername = username
	m.lastRegisterPassword = password
	if m.registerErr == nil {
		m.remember(m.registerUser)
	}
	return m.registerUser, m.registerErr
}

func (m *mockAuth) Verify(ctx context.Context, username, password string) (models.SessionUser, error) {
	return m.Authenticate(ctx, service.LocalCredential{Username: username, Password: password})
}

func (m *mockAuth) ResolveGoogle(ctx context.Context, p models.GoogleProfile) (models.SessionUser, error) {
	return m.Authenticate(ctx, service.GoogleFederated{Profile: p})
}

func (m *mockAuth) Authenticate(_ context.Context, cred service.Credential) (models.SessionUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authCalls++
	m.lastCred = cred
	if m.authErr == nil {
		m.remember(m.authUser)
	}
	return m.authUser, m.authErr
}

func (m *mockAuth) Lookup(_ context.Context, id int) (models.SessionUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.known[id]
	if !ok {
		return models.SessionUser{}, service.ErrNoSuchUser
	}
	return u, nil
}

type mockEventLog struct {
	mu sync.Mutex

	resp    []models.AuthEvent
	err     error
	recErr  error
	last    service.LogFilter
	filters []service.LogFilter
	records []models.AuthEvent
	lists   int
}

func (m *mockEventLog) Record(_ context.Context, e models.AuthEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, e)
	return m.recErr
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]models.AuthEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	m.last = f
	m.filters = append(m.filters, f)
	return m.resp, m.err
}

func (m *mockEventLog) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.Type)
	}
	return out
}

type mockGoogle struct {
	authURL  string
	nonce    string
	beginErr error

	profile     models.GoogleProfile
	completeErr error

	gotCode, gotState, gotNonce string
	completeCalls               int
}

func (m *mockGoogle) Begin() (string, string, error) {
	return m.authURL, m.nonce, m.beginErr
}

func (m *mockGoogle) Complete(_ context.Context, code, state, nonce string) (models.GoogleProfile, error) {
	m.completeCalls++
	m.gotCode, m.gotState, m.gotNonce = code, state, nonce
	return m.profile, m.completeErr
}

// ---- Shared Test Helpers ----

const testSessionCookie = "test_session"

func newTestHandler(s *service.Service, google FederatedProvider) *Handler {
	return newTestHandlerCtx(context.Background(), s, google)
}

func newTestHandlerCtx(root context.Context, s *service.Service, google FederatedProvider) *Handler {
	gin.SetMode(gin.TestMode)
	store := session.NewStore(session.NewMemoryBackend(), []byte("0123456789abcdef0123456789abcdef"))
	mgr := session.NewManager(testSessionCookie, store, ginsessions.Options{
		Path:     "/",
		MaxAge:   3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}, s.Authorization, nil)
	return NewHandler(root, s, mgr, google, nil)
}

func newTestRouter(s *service.Service, google FederatedProvider) *gin.Engine {
	return newTestHandler(s, google).InitRoutes()
}

// browser replays cookies between requests like a user agent would.
type browser struct {
	t   *testing.T
	r   http.Handler
	jar map[string]*http.Cookie
}

func newBrowser(t *testing.T, r http.Handler) *browser {
	return &browser{t: t, r: r, jar: map[string]*http.Cookie{}}
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range b.jar {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	w := httptest.NewRecorder()
	b.r.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.jar, c.Name)
			continue
		}
		b.jar[c.Name] = c
	}
	return w
}

func (b *browser) cookie(name string) *http.Cookie {
	return b.jar[name]
}

func creds(username, password string) url.Values {
	return url.Values{"username": {username}, "password": {password}}
}

func assertRedirect(t *testing.T, w *httptest.ResponseRecorder, want string) {
	t.Helper()
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d body=%s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Location"); got != want {
		t.Fatalf("expected redirect to %q, got %q", want, got)
	}
}

func (m *mockEventLog) setResp(events []models.AuthEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resp = events
}

func (m *mockEventLog) firstFilter() service.LogFilter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.filters) == 0 {
		return service.LogFilter{}
	}
	return m.filters[0]
}
