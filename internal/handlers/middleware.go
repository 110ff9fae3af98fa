package handlers

import (
	"net/http"
	"time"

	"secrets_app/internal/models"

	"github.com/gin-gonic/gin"
)

const ctxUserKey = "authUser"

// requestLogger writes one line per request.
func (h *Handler) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	if h.log != nil {
		h.log.Infow("http_request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// identify restores the authenticated user from the session, if any.
func (h *Handler) identify(c *gin.Context) {
	if u, ok := h.sessions.Current(c); ok {
		c.Set(ctxUserKey, u)
	}
	c.Next()
}

func currentUser(c *gin.Context) (models.SessionUser, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return models.SessionUser{}, false
	}
	u, ok := v.(models.SessionUser)
	return u, ok
}

// requireUser gates HTML pages: anonymous clients are sent to /login.
func (h *Handler) requireUser(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
		return
	}
	c.Next()
}

// requireUserAPI gates JSON endpoints.
func (h *Handler) requireUserAPI(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "authentication required",
		})
		return
	}
	c.Next()
}
