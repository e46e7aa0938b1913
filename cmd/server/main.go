package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/demandcast/backend/internal/config"
	"github.com/demandcast/backend/internal/db"
	"github.com/demandcast/backend/internal/forecast"
	httpapi "github.com/demandcast/backend/internal/http"
	"github.com/demandcast/backend/internal/insights"
	"github.com/demandcast/backend/internal/jobs"
	"github.com/demandcast/backend/internal/rates"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "demandcast-backend").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure schema")
	}

	var provider rates.Provider
	if cfg.RatesURL == "" {
		table, err := config.ParseExchangeRates(cfg.ExchangeRates)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid EXCHANGE_RATES")
		}
		provider = rates.StaticProvider{Rates: table}
		logger.Info().Msg("using static exchange rates")
	} else {
		provider = &rates.HTTPProvider{BaseURL: cfg.RatesURL, TTL: cfg.RatesTTL}
	}

	tracker := jobs.NewTracker()
	runner := &jobs.Runner{
		Tracker: tracker,
		Store:   store,
		Engine:  forecast.DefaultEngine(),
		Logger:  logger,
		Timeout: cfg.JobTimeout,
	}
	sweeper := &jobs.Sweeper{
		Tracker:   tracker,
		Retention: cfg.JobRetention,
		Interval:  cfg.SweepInterval,
		Logger:    logger,
	}
	if err := sweeper.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start job sweeper")
	}
	defer sweeper.Stop()

	insight := insights.Service{Rates: provider, Logger: logger}
	router := httpapi.Router(cfg, store, tracker, runner, insight, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
