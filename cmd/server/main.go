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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/ciel/gallery/application"
	"github.com/dfryer1193/ciel/gallery/persistence"
	"github.com/dfryer1193/ciel/internal/middleware"
	"github.com/dfryer1193/ciel/internal/rest"
	"github.com/dfryer1193/ciel/shared/config"
	"github.com/dfryer1193/ciel/shared/db/sqlite"
	"github.com/dfryer1193/ciel/shared/fetch"
)

const shutdownTimeout = 5 * time.Second

func setupLogging(cfg *config.Config) {
	zerolog.SetGlobalLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func main() {
	cfg := config.Load()
	setupLogging(cfg)

	// Initialize dependencies
	database := sqlite.NewSQLiteDB(sqlite.NewSQLiteConfig(cfg.DBPath))
	if err := database.Connect(); err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("Failed to connect to database")
	}
	defer database.Close()

	files, err := persistence.NewLocalImageFiles(cfg.ImagesDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.ImagesDir).Msg("Failed to open images directory")
	}

	index := persistence.NewTagIndex(database.DB())
	searchService := application.NewSearchService(index)
	lifecycleService := application.NewLifecycleService(
		index,
		persistence.NewTransactor(database.DB()),
		files,
		fetch.NewClient(cfg.FetchTimeout),
		nil,
	)
	defer func() {
		if err := lifecycleService.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to gracefully close lifecycle service")
		}
	}()

	if cfg.ReconcileOnStart {
		report, err := lifecycleService.Reconcile(context.Background(), true)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to reconcile images directory with index")
		}
		if !report.Clean() {
			log.Info().
				Int("removedFiles", len(report.OrphanFiles)).
				Int("discardedImages", len(report.MissingFiles)).
				Msg("Reconciled images directory with index")
		}
	}

	if zerolog.GlobalLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.LoggingMiddleware())
	r.Use(gin.CustomRecovery(middleware.HandlePanics()))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	rest.NewApi(r, rest.NewHandler(searchService, lifecycleService))

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to shutdown server")
	}

	log.Info().Msg("Server stopped")
}
