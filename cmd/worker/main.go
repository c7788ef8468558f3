// @title Thermal Worker API
// @version 1.0.0
// @description Thermal anomaly detection worker: listens to camera thermometry, captures evidence for over-temperature events and serves them.
// @BasePath /
package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"thermal-worker-go/internal/api"
	"thermal-worker-go/internal/config"
	"thermal-worker-go/internal/logging"
	"thermal-worker-go/internal/metrics"
	"thermal-worker-go/internal/services"
	"thermal-worker-go/internal/services/anomaly"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configuration
	cfg := config.Load()

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("Invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogdyEnabled {
		writer, _, err := logging.StartLogdy(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to start Logdy, continuing without it")
		} else {
			log.Logger = log.Output(io.MultiWriter(zerolog.ConsoleWriter{Out: os.Stderr}, writer))
		}
	}

	log.Info().
		Str("worker_id", cfg.WorkerID).
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Str("thermometry_url", cfg.ThermometryURL()).
		Float64("alarm_temperature", cfg.AlarmTemperature).
		Dur("event_cooldown", cfg.EventCooldown).
		Msg("Starting thermal worker")

	metrics.Init()

	container, err := services.NewServiceContainer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create services")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listenerDone := container.Start(ctx)

	server := api.NewServer(cfg, container.APIDeps())
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(ctx)
	}()

	// Wait for interrupt signal or a fatal component exit
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-listenerDone:
		if errors.Is(err, anomaly.ErrRetriesExhausted) {
			exitCode = 1
		}
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("API server failed")
			exitCode = 1
		}
	}

	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := container.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Services did not shut down cleanly")
	} else {
		log.Info().Msg("Shutdown complete")
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
