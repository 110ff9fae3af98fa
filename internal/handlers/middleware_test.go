package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"secrets_app/internal/logger"
	"secrets_app/internal/models"
	"secrets_app/internal/service"

	"github.com/gin-gonic/gin"
)

// minimal router wiring only the session + gate middleware
func newMiddlewareOnlyRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(h.sessions.Middleware(), h.identify)
	r.GET("/page", h.requireUser, func(c *gin.Context) { c.String(http.StatusOK, "page") })
	r.GET("/api", h.requireUserAPI, func(c *gin.Context) {
		u, _ := currentUser(c)
		c.JSON(http.StatusOK, gin.H{"id": u.ID})
	})
	r.GET("/login-as/:name", func(c *gin.Context) {
		if err := h.sessions.Establish(c, models.SessionUser{ID: 5, Username: c.Param("name")}); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestGates_Anonymous(t *testing.T) {
	h := newTestHandler(&service.Service{Authorization: &mockAuth{}}, nil)
	b := newBrowser(t, newMiddlewareOnlyRouter(h))

	assertRedirect(t, b.get("/page"), "/login")

	w := b.get("/api")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json; charset=utf-8" {
		t.Fatalf("expected JSON error body, got %q", w.Header().Get("Content-Type"))
	}
}

func TestGates_Authenticated(t *testing.T) {
	auth := &mockAuth{known: map[int]models.SessionUser{5: {ID: 5, Username: "alice"}}}
	h := newTestHandler(&service.Service{Authorization: auth}, nil)
	b := newBrowser(t, newMiddlewareOnlyRouter(h))

	if w := b.get("/login-as/alice"); w.Code != http.StatusNoContent {
		t.Fatalf("establish failed: %d", w.Code)
	}
	if w := b.get("/page"); w.Code != http.StatusOK {
		t.Fatalf("page status=%d", w.Code)
	}
	if w := b.get("/api"); w.Code != http.StatusOK {
		t.Fatalf("api status=%d", w.Code)
	}
}

func TestGates_DeletedUserIsAnonymous(t *testing.T) {
	auth := &mockAuth{known: map[int]models.SessionUser{5: {ID: 5, Username: "alice"}}}
	h := newTestHandler(&service.Service{Authorization: auth}, nil)
	b := newBrowser(t, newMiddlewareOnlyRouter(h))

	b.get("/login-as/alice")
	delete(auth.known, 5)
	assertRedirect(t, b.get("/page"), "/login")
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	h := &Handler{log: logger.Nop()}
	r := gin.New()
	r.Use(h.requestLogger)
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", w.Code)
	}
}
