package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"olivia/internal/config"
	"olivia/internal/observability/logging"
	"olivia/internal/providers/mockintake"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger := logging.WithComponent("mockintake")

	server := &http.Server{
		Addr:              cfg.Mock.IntakeAddr,
		Handler:           mockintake.NewRouter(mockintake.NewBackend(cfg.Mock.Latency)),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.Mock.IntakeAddr).
			Dur("latency", cfg.Mock.Latency).
			Msg("Starting mock intake server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Mock intake server error")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to shut down mock intake server")
	}
	logger.Info().Msg("Mock intake server stopped")
}
