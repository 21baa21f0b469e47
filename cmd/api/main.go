package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joshua-takyi/tourbook/internal/config"
	"github.com/joshua-takyi/tourbook/internal/container"
	"github.com/joshua-takyi/tourbook/internal/routes"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := setupLogger(cfg)
	logger.Info().Str("environment", cfg.Environment).Msg("Starting tourbook API server")

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	appContainer, err := container.NewContainer(startCtx, cfg, logger)
	if err != nil {
		cancelStart()
		logger.Fatal().Err(err).Msg("Failed to initialize dependencies")
	}
	if err := appContainer.EnsureIndexes(startCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to ensure indexes")
	}
	cancelStart()

	router := routes.SetupRoutes(appContainer)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		logger.Error().Err(err).Msg("Server failed")
	}

	logger.Info().Msg("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := appContainer.Close(); err != nil {
		logger.Error().Err(err).Msg("Error closing connections")
	}

	logger.Info().Msg("Server exited")
}

func setupLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if cfg.IsProduction() {
		return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	}
	// Human-readable logging for development
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Caller().Logger()
}
