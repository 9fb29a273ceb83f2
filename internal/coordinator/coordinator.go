// Package coordinator keeps the latest GIOŚ station data and tells
// subscribed entities when it changes.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/breatheroute/gios/internal/gios"
	"github.com/breatheroute/gios/internal/provider/resilience"
)

// Coordinator errors.
var (
	ErrNoFetcher       = errors.New("coordinator has no fetcher")
	ErrUpdateFailed    = errors.New("station update failed")
	ErrStationMismatch = errors.New("data belongs to another station")
)

// Fetcher retrieves the current readings of one station.
type Fetcher interface {
	FetchData(ctx context.Context, stationID int) (*gios.Data, error)
}

// Config holds configuration for a Coordinator.
type Config struct {
	// StationID is the GIOŚ measuring station to follow.
	StationID int

	// StationName is reported until the first update supplies one.
	StationName string

	// Fetcher pulls data for Refresh. Optional when data is pushed via SetData.
	Fetcher Fetcher

	// Logger for coordinator operations.
	Logger zerolog.Logger

	// ScanInterval is the polling period for Run (default: 30 minutes).
	ScanInterval time.Duration

	// Guard configures retries and the circuit breaker around Fetcher.
	// If nil, uses resilience.DefaultGuardConfig.
	Guard *resilience.GuardConfig

	// Registry receives provider health for the status endpoint. Optional.
	Registry *resilience.Registry

	// Metrics records refresh outcomes. Optional.
	Metrics *Metrics
}

// Status is a point-in-time view of the coordinator health.
type Status struct {
	StationID         int
	StationName       string
	HasData           bool
	LastUpdateSuccess bool
	FetchedAt         time.Time
	LastSuccessAt     time.Time
	LastFailureAt     time.Time
	LastError         string
	CircuitState      gobreaker.State
}

// Coordinator holds the last successfully fetched data for a station.
// Failed refreshes keep the previous data in place.
type Coordinator struct {
	stationID    int
	stationName  string
	fetcher      Fetcher
	guard        *resilience.Guard[*gios.Data]
	logger       zerolog.Logger
	scanInterval time.Duration
	metrics      *Metrics

	mu                sync.RWMutex
	data              *gios.Data
	lastUpdateSuccess bool
	lastSuccessAt     time.Time
	lastFailureAt     time.Time
	lastErr           error

	listenersMu    sync.Mutex
	listeners      map[int]func()
	nextListenerID int
}

// New creates a Coordinator for a single station.
func New(cfg Config) *Coordinator {
	scanInterval := cfg.ScanInterval
	if scanInterval == 0 {
		scanInterval = gios.DefaultScanInterval
	}

	guardCfg := resilience.DefaultGuardConfig(guardName(cfg.StationID))
	if cfg.Guard != nil {
		guardCfg = *cfg.Guard
		if guardCfg.Name == "" {
			guardCfg.Name = guardName(cfg.StationID)
		}
	}
	guardCfg.Registry = cfg.Registry

	return &Coordinator{
		stationID:    cfg.StationID,
		stationName:  cfg.StationName,
		fetcher:      cfg.Fetcher,
		guard:        resilience.NewGuard[*gios.Data](guardCfg),
		logger:       cfg.Logger.With().Int("station_id", cfg.StationID).Logger(),
		scanInterval: scanInterval,
		metrics:      cfg.Metrics,
		listeners:    make(map[int]func()),
	}
}

func guardName(stationID int) string {
	return gios.Domain + "-" + gios.StationKey(stationID)
}

// StationID returns the configured station id.
func (c *Coordinator) StationID() int {
	return c.stationID
}

// StationName returns the station name from the latest data, falling back
// to the configured name.
func (c *Coordinator) StationName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data != nil && c.data.StationName != "" {
		return c.data.StationName
	}
	return c.stationName
}

// Snapshot returns a copy of the latest readings, or an empty snapshot
// before the first successful update.
func (c *Coordinator) Snapshot() gios.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil {
		return gios.Snapshot{}
	}
	return c.data.Sensors.Clone()
}

// Data returns a copy of the latest data, or nil before the first successful update.
func (c *Coordinator) Data() *gios.Data {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Clone()
}

// LastUpdateSuccess reports whether the most recent update succeeded.
func (c *Coordinator) LastUpdateSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdateSuccess
}

// AddListener registers fn to be called after every successful update.
// The returned function removes the registration.
func (c *Coordinator) AddListener(fn func()) (remove func()) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	id := c.nextListenerID
	c.nextListenerID++
	c.listeners[id] = fn

	return func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		delete(c.listeners, id)
	}
}

// Refresh fetches fresh data for the station.
// On failure the previous data is kept and ErrUpdateFailed is returned.
func (c *Coordinator) Refresh(ctx context.Context) error {
	if c.fetcher == nil {
		return ErrNoFetcher
	}

	c.logger.Debug().Msg("refreshing station data")
	start := time.Now()

	data, err := c.guard.Execute(ctx, func(ctx context.Context) (*gios.Data, error) {
		return c.fetcher.FetchData(ctx, c.stationID)
	})
	if err == nil && data == nil {
		err = errors.New("fetcher returned no data")
	}
	if err == nil && data.StationID != 0 && data.StationID != c.stationID {
		err = fmt.Errorf("%w: got %d", ErrStationMismatch, data.StationID)
	}

	if c.metrics != nil {
		c.metrics.RecordRefresh(ctx, c.stationID, time.Since(start), err)
	}

	if err != nil {
		c.recordFailure(err)
		return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}

	c.store(data)
	return nil
}

// SetData replaces the current data with data pushed by an external source
// and notifies listeners.
func (c *Coordinator) SetData(data *gios.Data) error {
	if data == nil {
		return fmt.Errorf("%w: nil data", ErrUpdateFailed)
	}
	if data.StationID != c.stationID {
		return fmt.Errorf("%w: got %d, want %d", ErrStationMismatch, data.StationID, c.stationID)
	}
	c.store(data)
	return nil
}

// Run refreshes immediately and then every scan interval until ctx is done.
func (c *Coordinator) Run(ctx context.Context) {
	c.logger.Info().
		Dur("scan_interval", c.scanInterval).
		Msg("coordinator started")

	c.refreshAndLog(ctx)

	ticker := time.NewTicker(c.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("coordinator stopped")
			return
		case <-ticker.C:
			c.refreshAndLog(ctx)
		}
	}
}

// Status returns the current health of the coordinator.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := Status{
		StationID:         c.stationID,
		StationName:       c.stationName,
		HasData:           c.data != nil,
		LastUpdateSuccess: c.lastUpdateSuccess,
		LastSuccessAt:     c.lastSuccessAt,
		LastFailureAt:     c.lastFailureAt,
		CircuitState:      c.guard.CircuitBreakerState(),
	}
	if c.data != nil {
		status.FetchedAt = c.data.FetchedAt
		if c.data.StationName != "" {
			status.StationName = c.data.StationName
		}
	}
	if c.lastErr != nil {
		status.LastError = c.lastErr.Error()
	}
	return status
}

func (c *Coordinator) refreshAndLog(ctx context.Context) {
	if c.fetcher == nil {
		return
	}
	if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
		c.logger.Warn().Err(err).Msg("keeping previous station data")
	}
}

// store keeps a private copy of data; the caller's value is not modified.
func (c *Coordinator) store(data *gios.Data) {
	data = data.Clone()
	if data.FetchedAt.IsZero() {
		data.FetchedAt = time.Now()
	}

	c.mu.Lock()
	c.data = data
	c.lastUpdateSuccess = true
	c.lastSuccessAt = time.Now()
	c.lastErr = nil
	c.mu.Unlock()

	c.logger.Info().
		Str("station_name", data.StationName).
		Int("sensors", len(data.Sensors)).
		Time("fetched_at", data.FetchedAt).
		Msg("station data updated")

	c.notify()
}

func (c *Coordinator) recordFailure(err error) {
	c.mu.Lock()
	c.lastUpdateSuccess = false
	c.lastFailureAt = time.Now()
	c.lastErr = err
	hasData := c.data != nil
	c.mu.Unlock()

	c.logger.Error().
		Err(err).
		Bool("has_stale_data", hasData).
		Msg("failed to update station data")
}

// notify calls listeners in registration order, outside any lock.
func (c *Coordinator) notify() {
	c.listenersMu.Lock()
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.listeners[id])
	}
	c.listenersMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
