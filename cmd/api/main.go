// Package main provides the entrypoint for the GIOŚ air quality API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/gios/internal/api"
	"github.com/breatheroute/gios/internal/api/middleware"
	"github.com/breatheroute/gios/internal/app"
	"github.com/breatheroute/gios/internal/auth"
	"github.com/breatheroute/gios/internal/config"
	"github.com/breatheroute/gios/internal/coordinator"
	"github.com/breatheroute/gios/internal/telemetry"
	"github.com/breatheroute/gios/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "gios-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting GIOŚ API")

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if len(cfg.Stations) == 0 {
		log.Warn().Msg("GIOS_STATIONS is empty, no entities will be created")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize http metrics")
	}
	refreshMetrics, err := coordinator.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize refresh metrics")
	}

	var publisher *worker.StatePublisher
	if cfg.PubSubProjectID != "" && cfg.PubSubStateTopic != "" {
		publisher, err = worker.NewStatePublisher(ctx, cfg.PubSubProjectID, cfg.PubSubStateTopic)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create state publisher")
		}
		defer publisher.Close() //nolint:errcheck // best effort on shutdown
		log.Info().Str("topic", cfg.PubSubStateTopic).Msg("publishing entity states")
	}

	opts := app.Options{
		Config:  cfg,
		Logger:  log,
		Metrics: refreshMetrics,
	}
	if publisher != nil {
		opts.Publisher = publisher
	}
	svc, err := app.New(ctx, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up stations")
	}
	go svc.Run(ctx)

	if cfg.PubSubProjectID != "" {
		subscriber, subErr := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProjectID,
			SubscriptionName: cfg.PubSubSnapshotSubscription,
			Stations:         svc.Stations(),
			RefreshJob:       svc.RefreshJob,
			Logger:           log.With().Str("component", "pubsub").Logger(),
		})
		if subErr != nil {
			log.Fatal().Err(subErr).Msg("failed to create pubsub handler")
		}
		defer subscriber.Close() //nolint:errcheck // best effort on shutdown

		go func() {
			if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	var tokens *auth.TokenService
	if cfg.APITokenSecret != "" {
		tokens, err = auth.NewTokenService(auth.TokenConfig{Secret: cfg.APITokenSecret})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create token service")
		}
	} else {
		log.Warn().Msg("API_TOKEN_SECRET not set, status endpoint disabled")
	}

	routerCfg := api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     httpMetrics,
		RequireTLS:  cfg.RequireTLS,
		Platform:    svc.Platform,
		Stations:    svc.StationStatuses(),
		Providers:   svc.Registry,
	}
	if tokens != nil {
		routerCfg.Tokens = tokens
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Int("stations", len(cfg.Stations)).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}
