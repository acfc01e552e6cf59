// Command server boots the content moderation engine: configuration, logging,
// database, signed audit ledger, background scheduler, and the HTTP API.
//
// Startup order matters: the audit ledger must hold a usable signing key
// before any request or job can record an event, so ledger construction is
// fail-fast and precedes everything that writes.
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
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/cultivarhq/go-moderation-backend/internal/config"
	httpapi "github.com/cultivarhq/go-moderation-backend/internal/http"
	"github.com/cultivarhq/go-moderation-backend/internal/observability"
	"github.com/cultivarhq/go-moderation-backend/internal/repo"
	"github.com/cultivarhq/go-moderation-backend/internal/scheduler"
	"github.com/cultivarhq/go-moderation-backend/internal/services"
	"github.com/cultivarhq/go-moderation-backend/internal/sysutil"
	"github.com/cultivarhq/go-moderation-backend/internal/transparency"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// Local development convenience; absence of a .env file is fine.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Info().Str("version", version).Str("port", cfg.Port).Msg("starting moderation engine")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing (no-op when disabled).
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		if err := shutdownOTel(context.Background()); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db := openDB(cfg)
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	// The ledger refuses to start without a strong signing key.
	ledger, err := services.NewAuditLedger(ctx, db, cfg.Audit)
	if err != nil {
		log.Fatal().Err(err).Msg("audit ledger init failed")
	}
	log.Info().Int("key_version", ledger.ActiveKeyVersion()).Msg("audit ledger ready")

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
	}

	tdb := transparency.NewClient(cfg.Transparency)

	// Background jobs share service instances with the HTTP layer only where
	// state lives in the database; construction here is cheap.
	sched := scheduler.New(
		ledger,
		services.NewSlaService(db, ledger),
		services.NewExportService(db, tdb, cfg.Transparency),
	)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("scheduler start failed")
	}
	defer sched.Stop()

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, ledger, rdb, tdb, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Str("addr", srv.Addr).Msg("http server listening")

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}

// openDB opens the configured database driver, exiting on failure.
func openDB(cfg config.Config) *gorm.DB {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DBDriver {
	case "postgres":
		db, err = repo.OpenPostgres(cfg.DatabaseURL)
	default:
		db, err = repo.OpenSQLite(cfg.DBPath)
	}
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("database open failed")
	}
	return db
}
