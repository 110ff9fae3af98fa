package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// page renders name with the shared layout data.
func (h *Handler) page(c *gin.Context, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if u, ok := currentUser(c); ok {
		data["User"] = u
	}
	data["Flashes"] = h.sessions.Flashes(c)
	c.HTML(http.StatusOK, name, data)
}

func (h *Handler) homePage(c *gin.Context) {
	h.page(c, "home.html", nil)
}

func (h *Handler) loginPage(c *gin.Context) {
	h.page(c, "login.html", gin.H{"GoogleEnabled": h.google != nil})
}

func (h *Handler) registerPage(c *gin.Context) {
	h.page(c, "register.html", nil)
}

func (h *Handler) secretsPage(c *gin.Context) {
	h.page(c, "secrets.html", nil)
}
