package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/gios/internal/coordinator"
)

// Refresher is a station that can be refreshed on demand.
type Refresher interface {
	StationID() int
	Refresh(ctx context.Context) error
}

// RefreshJob refreshes a set of stations with bounded concurrency.
type RefreshJob struct {
	config   RefreshConfig
	logger   zerolog.Logger
	stations []Refresher

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRuns         int64
	SuccessfulRefresh int64
	FailedRefreshes   int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config   RefreshConfig
	Logger   zerolog.Logger
	Stations []Refresher
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	defaults := DefaultRefreshConfig()
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &RefreshJob{
		config:   config,
		logger:   cfg.Logger,
		stations: cfg.Stations,
		metrics:  &RefreshMetrics{},
	}
}

// RefreshResult contains the result of a refresh run.
type RefreshResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Total      int
	Successful int
	Failed     int
	Skipped    int // stations without a fetcher
	Errors     []RefreshError
}

// RefreshError represents a failed station refresh.
type RefreshError struct {
	StationID int
	Error     string
}

// Run refreshes every station once.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := time.Now()
	result := &RefreshResult{
		StartTime: startTime,
		Total:     len(j.stations),
	}

	j.logger.Info().
		Int("stations", result.Total).
		Int("concurrency", j.config.Concurrency).
		Msg("starting station refresh job")

	stationsChan := make(chan Refresher, len(j.stations))
	resultsChan := make(chan stationResult, len(j.stations))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, stationsChan, resultsChan)
		}()
	}

	for _, s := range j.stations {
		stationsChan <- s
	}
	close(stationsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for sr := range resultsChan {
		if sr.err == nil {
			result.Successful++
			continue
		}
		if errors.Is(sr.err, coordinator.ErrNoFetcher) {
			result.Skipped++
			continue
		}
		result.Failed++
		result.Errors = append(result.Errors, RefreshError{
			StationID: sr.stationID,
			Error:     sr.err.Error(),
		})
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("station refresh job completed")

	return result
}

type stationResult struct {
	stationID int
	err       error
}

func (j *RefreshJob) refreshWorker(ctx context.Context, stations <-chan Refresher, results chan<- stationResult) {
	for station := range stations {
		select {
		case <-ctx.Done():
			results <- stationResult{stationID: station.StationID(), err: ctx.Err()}
		default:
			stationCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
			err := station.Refresh(stationCtx)
			cancel()
			results <- stationResult{stationID: station.StationID(), err: err}
		}
	}
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulRefresh += int64(result.Successful)
	j.metrics.FailedRefreshes += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:         j.metrics.TotalRuns,
		SuccessfulRefresh: j.metrics.SuccessfulRefresh,
		FailedRefreshes:   j.metrics.FailedRefreshes,
		LastRunAt:         j.metrics.LastRunAt,
		LastRunDuration:   j.metrics.LastRunDuration,
		TotalDuration:     j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":           m.TotalRuns,
		"successful_refreshes": m.SuccessfulRefresh,
		"failed_refreshes":     m.FailedRefreshes,
		"last_run_at":          m.LastRunAt,
		"last_run_duration":    m.LastRunDuration.String(),
		"total_duration":       m.TotalDuration.String(),
	}
}
