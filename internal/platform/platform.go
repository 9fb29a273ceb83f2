// Package platform is the host side of the air quality integration: it
// registers entities, keeps their rendered state and pushes changes out.
package platform

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/breatheroute/gios/internal/entity"
	"github.com/breatheroute/gios/internal/gios"
)

// EntityDomain is the entity id prefix for air quality entities.
const EntityDomain = "air_quality"

// Coordinator is what an entity needs from its update coordinator.
type Coordinator interface {
	entity.DataSource

	// AddListener registers fn for update notifications and returns a
	// function that removes it.
	AddListener(fn func()) (remove func())
}

// StatePublisher receives every state change.
type StatePublisher interface {
	PublishState(ctx context.Context, state State) error
}

// ConfigEntry is one configured station.
type ConfigEntry struct {
	EntryID string
	Name    string
}

// Config holds configuration for the Platform.
type Config struct {
	Logger    zerolog.Logger
	Publisher StatePublisher
}

type loadedEntry struct {
	entityID string
	view     *entity.AirQualityView
	remove   func()
}

// Platform owns the registries and the state machine. Entity updates are
// serialised under a single lock, so an entity is never read concurrently.
type Platform struct {
	logger    zerolog.Logger
	publisher StatePublisher

	entities *EntityRegistry
	devices  *DeviceRegistry
	states   *StateMachine

	mu      sync.Mutex
	entries map[string]*loadedEntry
}

// New creates a Platform.
func New(cfg Config) *Platform {
	return &Platform{
		logger:    cfg.Logger,
		publisher: cfg.Publisher,
		entities:  NewEntityRegistry(),
		devices:   NewDeviceRegistry(),
		states:    NewStateMachine(),
		entries:   make(map[string]*loadedEntry),
	}
}

// SetupEntry creates the air quality entity for a configured station,
// registers it, subscribes it to coordinator updates and writes its
// initial state.
func (p *Platform) SetupEntry(ctx context.Context, entry ConfigEntry, coordinator Coordinator) (*entity.AirQualityView, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.entries[entry.EntryID]; ok {
		return nil, fmt.Errorf("config entry %q already set up", entry.EntryID)
	}

	name := entry.Name
	if name == "" {
		name = gios.DefaultName
	}
	view := entity.NewAirQualityView(coordinator, name)

	device := p.devices.GetOrCreate(view.DeviceInfo())
	registered, err := p.entities.Register(EntityDomain, gios.Domain, view.UniqueID(), view.Name(), device.ID)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", view.UniqueID(), err)
	}

	loaded := &loadedEntry{entityID: registered.EntityID, view: view}
	loaded.remove = coordinator.AddListener(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.entries[entry.EntryID] != loaded {
			return // unloaded while the notification was in flight
		}
		p.writeState(context.WithoutCancel(ctx), loaded)
	})
	p.entries[entry.EntryID] = loaded

	p.writeState(ctx, loaded)

	p.logger.Info().
		Str("entity_id", registered.EntityID).
		Str("unique_id", registered.UniqueID).
		Str("device_id", device.ID).
		Msg("air quality entity added")

	return view, nil
}

// UnloadEntry unsubscribes and removes the entity of a config entry.
func (p *Platform) UnloadEntry(entryID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	loaded, ok := p.entries[entryID]
	if !ok {
		return ErrEntityNotFound
	}

	loaded.remove()
	p.entities.Remove(loaded.entityID)
	p.states.Remove(loaded.entityID)
	delete(p.entries, entryID)

	p.logger.Info().Str("entity_id", loaded.entityID).Msg("air quality entity removed")
	return nil
}

// State returns the current state of entityID.
func (p *Platform) State(entityID string) (State, bool) {
	return p.states.Get(entityID)
}

// States returns all entity states.
func (p *Platform) States() []State {
	return p.states.All()
}

// Entities returns the entity registry entries.
func (p *Platform) Entities() []*EntityEntry {
	return p.entities.Entries()
}

// Devices returns the device registry entries.
func (p *Platform) Devices() []*Device {
	return p.devices.Devices()
}

// writeState renders the entity and stores the result. Caller holds p.mu.
func (p *Platform) writeState(ctx context.Context, loaded *loadedEntry) {
	state, changed := p.states.Set(
		loaded.entityID,
		entity.State(loaded.view),
		entity.StateAttributes(loaded.view),
	)
	if !changed {
		return
	}

	p.logger.Debug().
		Str("entity_id", state.EntityID).
		Str("state", state.State).
		Msg("state changed")

	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishState(ctx, state); err != nil {
		p.logger.Warn().Err(err).Str("entity_id", state.EntityID).Msg("failed to publish state")
	}
}
