// Package main is the entry point for the portfolio valuation service.
// It values the configured exchange and brokerage accounts on a schedule
// and serves the latest summary over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/portfoliowidget/internal/config"
	"github.com/aristath/portfoliowidget/internal/di"
	"github.com/aristath/portfoliowidget/internal/scheduler"
	"github.com/aristath/portfoliowidget/internal/server"
	"github.com/aristath/portfoliowidget/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("currency", cfg.TargetCurrency).
		Float64("dust_threshold", cfg.DustThreshold).
		Msg("Starting portfolio valuation service")

	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.LogPretty,
		Portfolio: container.PortfolioHandler,
		Currency:  container.CurrencyHandler,
		System:    server.NewSystemHandlers(log, container.Valuation, container.DisplayState),
		Metrics:   container.Metrics,
	})

	// Scheduled refresh shares the coalesced sources with manual refreshes
	refreshJob := scheduler.NewRefreshJob(container.PortfolioHandler, 2*cfg.HTTPTimeout, log)
	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.RefreshSchedule, refreshJob); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.RefreshSchedule).Msg("Failed to register refresh job")
	}
	sched.Start()

	// Value the portfolio once at startup so the first request is served from memory
	go func() {
		if err := sched.RunNow(refreshJob); err != nil {
			log.Error().Err(err).Msg("Initial refresh failed")
		}
	}()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	sched.Stop()

	log.Info().Msg("Shutdown complete")
}
