package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "secrets_app/docs"
	"secrets_app/internal/config"
	"secrets_app/internal/handlers"
	"secrets_app/internal/logger"
	"secrets_app/internal/oauth"
	"secrets_app/internal/repository"
	"secrets_app/internal/repository/db"
	"secrets_app/internal/server"
	"secrets_app/internal/service"
	"secrets_app/internal/session"

	"github.com/gin-gonic/gin"
)

// @title                       Secrets API
// @version                     1.0
// @description                 Session-authenticated activity API of the secrets app.
// @host                        localhost:5000
// @BasePath                    /
// @securityDefinitions.apikey  SessionCookie
// @in                          header
// @name                        secrets_session
func main() {
	// load configs/config.yml, .env and environment overrides
	cfg, err := config.Load("config", "configs", ".")
	if err != nil {
		logger.Get(logger.InfoLevel, logger.ConsoleFormat).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Get(cfg.Log.Level, cfg.Log.Format)
	gin.SetMode(cfg.Mode)
	if cfg.Session.Ephemeral {
		log.Warnw("session_secret_generated", "hint", "set SESSION_SECRET to keep sessions across restarts")
	}

	// open DB
	conn, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "path", cfg.DB.Path, "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// wire dependencies
	repos := repository.NewRepository(conn)
	services := service.NewService(repos, cfg.Auth.BcryptCost)

	backend, purger, closeBackend, err := openSessionBackend(ctx, cfg, repos)
	if err != nil {
		log.Fatalw("failed to open session backend", "backend", cfg.Session.Backend, "err", err)
	}
	defer closeBackend()
	if purger != nil {
		go session.RunReaper(ctx, purger, cfg.Session.CleanupInterval, log)
	}

	store := session.NewStore(backend, []byte(cfg.Session.Secret)).WithLogger(log)
	sessions := session.NewManager(cfg.Session.Name, store, session.OptionsFrom(cfg.Session), services.Authorization, log)

	var google handlers.FederatedProvider
	if cfg.Google.Enabled() {
		google = oauth.NewGoogle(cfg.Google, cfg.Session.Secret)
	} else {
		log.Infow("google_sign_in_disabled", "hint", "set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
	}
	apiHandler := handlers.NewHandler(ctx, services, sessions, google, log)

	// start HTTP server
	srv := server.New(cfg.HTTP)
	runHTTPServer(srv, cfg.Port, apiHandler, log)
	log.Infow("server_started", "port", cfg.Port, "mode", cfg.Mode, "session_backend", cfg.Session.Backend)

	// graceful shutdown
	waitForShutdown(cancel, srv, cfg.HTTP.ShutdownTimeout, log)
}

// openSessionBackend returns the configured store, its purger when the
// backend does not expire records itself, and a close func.
func openSessionBackend(ctx context.Context, cfg *config.Config, repos *repository.Repository) (session.Backend, session.Purger, func(), error) {
	switch cfg.Session.Backend {
	case config.BackendSQLite:
		return repos.Sessions, repos.Sessions, func() {}, nil
	case config.BackendMemory:
		mem := session.NewMemoryBackend()
		return mem, mem, func() {}, nil
	case config.BackendRedis:
		client, err := repository.OpenRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, nil, err
		}
		return repository.NewSessionRedis(client, cfg.Redis.Prefix), nil, func() { _ = client.Close() }, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, timeout time.Duration, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
