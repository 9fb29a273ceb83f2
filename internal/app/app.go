// Package app assembles the coordinators, the platform and the background
// workers from a service configuration. Both binaries build on it.
package app

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/breatheroute/gios/internal/api/handler"
	"github.com/breatheroute/gios/internal/config"
	"github.com/breatheroute/gios/internal/coordinator"
	"github.com/breatheroute/gios/internal/platform"
	"github.com/breatheroute/gios/internal/provider/resilience"
	"github.com/breatheroute/gios/internal/worker"
)

// Options configures a Service.
type Options struct {
	Config config.Config
	Logger zerolog.Logger

	// Fetcher pulls station data. Without one the stations are fed only
	// by Pub/Sub snapshots and are never polled.
	Fetcher coordinator.Fetcher

	// Publisher receives entity state changes. Optional.
	Publisher platform.StatePublisher

	// Metrics records refresh outcomes. Optional.
	Metrics *coordinator.Metrics
}

// Service is the assembled air quality integration.
type Service struct {
	Platform     *platform.Platform
	Coordinators []*coordinator.Coordinator
	Registry     *resilience.Registry
	RefreshJob   *worker.RefreshJob

	logger  zerolog.Logger
	polling bool
}

// New creates one coordinator and one entity per configured station.
func New(ctx context.Context, opts Options) (*Service, error) {
	registry := resilience.NewRegistry()
	p := platform.New(platform.Config{
		Logger:    opts.Logger.With().Str("component", "platform").Logger(),
		Publisher: opts.Publisher,
	})

	coordinators := make([]*coordinator.Coordinator, 0, len(opts.Config.Stations))
	refreshers := make([]worker.Refresher, 0, len(opts.Config.Stations))
	for _, station := range opts.Config.Stations {
		coord := coordinator.New(coordinator.Config{
			StationID:    station.ID,
			StationName:  station.Name,
			Fetcher:      opts.Fetcher,
			Logger:       opts.Logger.With().Str("component", "coordinator").Logger(),
			ScanInterval: opts.Config.ScanInterval,
			Registry:     registry,
			Metrics:      opts.Metrics,
		})

		entry := platform.ConfigEntry{EntryID: strconv.Itoa(station.ID), Name: station.Name}
		if _, err := p.SetupEntry(ctx, entry, coord); err != nil {
			return nil, fmt.Errorf("setting up station %d: %w", station.ID, err)
		}

		coordinators = append(coordinators, coord)
		refreshers = append(refreshers, coord)
	}

	return &Service{
		Platform:     p,
		Coordinators: coordinators,
		Registry:     registry,
		RefreshJob: worker.NewRefreshJob(worker.RefreshJobConfig{
			Logger:   opts.Logger.With().Str("component", "refresh").Logger(),
			Stations: refreshers,
		}),
		logger:  opts.Logger,
		polling: opts.Fetcher != nil,
	}, nil
}

// Stations returns the coordinators as Pub/Sub stations.
func (s *Service) Stations() []worker.Station {
	stations := make([]worker.Station, len(s.Coordinators))
	for i, c := range s.Coordinators {
		stations[i] = c
	}
	return stations
}

// StationStatuses returns the coordinators as seen by the ops handler.
func (s *Service) StationStatuses() []handler.StationStatus {
	statuses := make([]handler.StationStatus, len(s.Coordinators))
	for i, c := range s.Coordinators {
		statuses[i] = c
	}
	return statuses
}

// Run polls every station until ctx is done. It returns immediately when
// the service has no fetcher.
func (s *Service) Run(ctx context.Context) {
	if !s.polling {
		s.logger.Info().Msg("no fetcher configured, stations are updated by snapshots only")
		return
	}

	var wg sync.WaitGroup
	for _, c := range s.Coordinators {
		wg.Add(1)
		go func(c *coordinator.Coordinator) {
			defer wg.Done()
			c.Run(ctx)
		}(c)
	}
	wg.Wait()
}
