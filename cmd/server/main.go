// Command server runs the kudos backend: a REST API for submitting and
// listing anonymous compliments plus a websocket gateway that pushes each new
// compliment to the live sessions watching its recipient code.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kudobox/kudos-backend/internal/config"
	httpapi "github.com/kudobox/kudos-backend/internal/http"
	"github.com/kudobox/kudos-backend/internal/observability"
	"github.com/kudobox/kudos-backend/internal/repo"
	"github.com/kudobox/kudos-backend/internal/sysutil"
	"github.com/kudobox/kudos-backend/internal/ws"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly and can
	// opt out of file loading with NO_DOTENV=1.
	if !sysutil.IsTruthy(os.Getenv("NO_DOTENV")) {
		_ = godotenv.Load()
	}

	// SERVICE_VERSION overrides the build-time stamp, e.g. in container
	// images built without ldflags.
	ver := sysutil.FirstNonEmpty(os.Getenv("SERVICE_VERSION"), version)

	cfg := config.MustLoad()

	// Logging: JSON by default, pretty console for local development.
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	sysutil.SetLogLevel(cfg.LogLevel)

	log.Info().
		Str("version", ver).
		Str("port", cfg.Port).
		Str("gin_mode", cfg.GinMode).
		Msg("starting kudos-backend")

	// Tracing.
	ctx := context.Background()
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	// Storage.
	db, err := repo.Open(cfg.DBPath, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	// Realtime hub.
	hub := ws.NewHub()

	// HTTP engine and routes.
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, hub, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		// WriteTimeout stays zero: it would sever long-lived websocket
		// connections; REST responses are bounded by handler work instead.
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Block until a shutdown signal or a fatal server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		log.Error().Err(err).Msg("server failed")
	}

	// Drain in-flight requests, then close websocket rooms and flush traces.
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	hub.Shutdown()
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}

	log.Info().Msg("stopped")
}
