// Command server runs the RowQuest HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rowquest/rowquest-api/internal/app"
	"github.com/rowquest/rowquest-api/internal/cache"
	"github.com/rowquest/rowquest-api/internal/config"
	"github.com/rowquest/rowquest-api/internal/repository"
	"github.com/rowquest/rowquest-api/internal/storage"
	"github.com/rowquest/rowquest-api/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	// A missing .env file is fine; real deployments pass the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("environment", cfg.Server.Environment).
		Str("data_mode", cfg.Data.Mode).
		Msg("Starting RowQuest API")

	db, err := repository.Open(cfg, log.Component("database"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}()

	var leaderboardCache app.Cache
	if cfg.Cache.Enabled {
		redisCache, err := cache.New(&cfg.Database.Redis, log.Component("cache"))
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisCache.Close()
		leaderboardCache = redisCache
	}

	var uploader *storage.Uploader
	if cfg.Storage.Enabled {
		uploader = storage.NewUploader(&cfg.Storage, log.Component("storage"))
	}

	application, err := app.New(ctx, cfg, db, leaderboardCache, uploader, log)
	if err != nil {
		return err
	}

	if err := application.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer application.Scheduler.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           application.Router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Info().Msg("Server stopped")
	return nil
}
