// Package main provides the entrypoint for the headless GIOŚ worker. It
// runs the station coordinators fed by Pub/Sub, publishes entity state
// changes and serves only the health probes.
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
	"github.com/breatheroute/gios/internal/app"
	"github.com/breatheroute/gios/internal/config"
	"github.com/breatheroute/gios/internal/coordinator"
	"github.com/breatheroute/gios/internal/telemetry"
	"github.com/breatheroute/gios/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "gios-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting GIOŚ worker")

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.PubSubProjectID == "" {
		log.Fatal().Msg("PUBSUB_PROJECT_ID is required for the worker")
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

	refreshMetrics, err := coordinator.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize refresh metrics")
	}

	opts := app.Options{
		Config:  cfg,
		Logger:  log,
		Metrics: refreshMetrics,
	}
	if cfg.PubSubStateTopic != "" {
		publisher, pubErr := worker.NewStatePublisher(ctx, cfg.PubSubProjectID, cfg.PubSubStateTopic)
		if pubErr != nil {
			log.Fatal().Err(pubErr).Msg("failed to create state publisher")
		}
		defer publisher.Close() //nolint:errcheck // best effort on shutdown
		opts.Publisher = publisher
	} else {
		log.Warn().Msg("PUBSUB_STATE_TOPIC not set, state changes stay local")
	}

	svc, err := app.New(ctx, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up stations")
	}
	go svc.Run(ctx)

	subscriber, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        cfg.PubSubProjectID,
		SubscriptionName: cfg.PubSubSnapshotSubscription,
		Stations:         svc.Stations(),
		RefreshJob:       svc.RefreshJob,
		Logger:           log.With().Str("component", "pubsub").Logger(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pubsub handler")
	}
	defer subscriber.Close() //nolint:errcheck // best effort on shutdown

	// Worker also exposes health endpoints for Cloud Run
	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: api.NewProbeRouter(api.ProbeConfig{
			Version:   Version,
			BuildTime: BuildTime,
			Logger:    log,
			Stations:  svc.StationStatuses(),
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("probe server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("probe server error")
		}
	}()

	if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("pubsub handler stopped")
		stop()
	}

	log.Info().Msg("shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("probe server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
