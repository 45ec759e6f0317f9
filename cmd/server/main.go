// Command server runs the Paddock backend: the realtime chat pipeline,
// the profile and room APIs, and the news/standings read models.
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

	"github.com/racetowin/paddock-backend/internal/config"
	httpapi "github.com/racetowin/paddock-backend/internal/http"
	"github.com/racetowin/paddock-backend/internal/news"
	"github.com/racetowin/paddock-backend/internal/observability"
	"github.com/racetowin/paddock-backend/internal/repo"
	"github.com/racetowin/paddock-backend/internal/standings"
	"github.com/racetowin/paddock-backend/internal/store"
)

// version is stamped by the build pipeline via -ldflags.
var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	logger := setupLogger(cfg)
	log.Logger = logger
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.Setup(ctx, cfg.OTEL, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("tracing setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("could not open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}

	var broker store.Broker
	if cfg.RedisAddr != "" {
		rb, err := store.NewRedisBroker(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("could not connect to redis")
		}
		broker = rb
		logger.Info().Str("addr", cfg.RedisAddr).Msg("using redis message broker")
	} else {
		broker = store.NewHubBroker()
		logger.Info().Msg("using in-process message broker")
	}

	deps := httpapi.Deps{
		DB:        db,
		Store:     store.New(db, broker, logger),
		Avatars:   httpapi.NewAvatarCache(db),
		News:      news.New(cfg.News, logger),
		Standings: standings.New(cfg.Standings, logger),
		Log:       logger,
	}

	engine := gin.New()
	httpapi.RegisterRoutes(engine, deps, cfg)

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
		logger.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	if err := broker.Close(); err != nil {
		logger.Error().Err(err).Msg("broker close failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracing shutdown failed")
	}
	logger.Info().Msg("bye")
}

func setupLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var w = os.Stderr
	logger := zerolog.New(w)
	if cfg.LogPretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Str("service", "paddock-backend").Logger()
}
