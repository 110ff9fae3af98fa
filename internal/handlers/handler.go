package handlers

import (
	"context"
	"embed"
	"html/template"
	"net/http"

	"secrets_app/internal/logger"
	"secrets_app/internal/models"
	"secrets_app/internal/service"
	"secrets_app/internal/session"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//go:embed templates/*.html
var templateFS embed.FS

// FederatedProvider runs the Google authorization-code handshake.
type FederatedProvider interface {
	Begin() (authURL, nonce string, err error)
	Complete(ctx context.Context, code, state, nonce string) (models.GoogleProfile, error)
}

// Handler wires HTTP layer to services, sessions and logging.
type Handler struct {
	root     context.Context
	services *service.Service
	sessions *session.Manager
	google   FederatedProvider
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies. Long-lived
// streams end when root is cancelled. google may be nil when no OAuth
// client is configured.
func NewHandler(root context.Context, services *service.Service, sessions *session.Manager, google FederatedProvider, log *logger.Logger) *Handler {
	return &Handler{root: root, services: services, sessions: sessions, google: google, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger)
	router.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	site := router.Group("/", h.sessions.Middleware(), h.identify)
	{
		h.registerPageRoutes(site)
		h.registerAuthRoutes(site)
		h.registerAPIRoutes(site)

		site.GET("/ws", h.requireUserAPI, h.wsConnect)
	}

	return router
}

func (h *Handler) registerPageRoutes(r *gin.RouterGroup) {
	r.GET("/", h.homePage)
	r.GET("/login", h.loginPage)
	r.GET("/register", h.registerPage)
	r.GET("/secrets", h.requireUser, h.secretsPage)
}

func (h *Handler) registerAuthRoutes(r *gin.RouterGroup) {
	r.POST("/register", h.register)
	r.POST("/login", h.login)
	r.GET("/logout", h.logout)

	google := r.Group("/auth/google")
	{
		google.GET("", h.googleStart)
		google.GET("/secrets", h.googleCallback)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.RouterGroup) {
	api := r.Group("/api/v1", h.requireUserAPI)
	{
		api.GET("/events", h.getEvents)
	}
}

// @Summary  Health check
// @Tags     health
// @Produce  json
// @Success  200  {object}  map[string]string
// @Router   /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
