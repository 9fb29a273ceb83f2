package platform

import (
	"reflect"
	"sort"
	"sync"
	"time"
)

// State is the rendered state of one entity.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// StateMachine keeps the current state of every entity.
type StateMachine struct {
	mu     sync.RWMutex
	states map[string]*State
	now    func() time.Time
}

// NewStateMachine creates an empty state machine.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		states: make(map[string]*State),
		now:    time.Now,
	}
}

// Set stores a new state for entityID. It returns the stored state and
// whether anything changed. LastChanged moves only when the state string
// changes; LastUpdated moves when the state or any attribute changes.
func (m *StateMachine) Set(entityID, state string, attributes map[string]any) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	old, exists := m.states[entityID]

	if exists && old.State == state && reflect.DeepEqual(old.Attributes, attributes) {
		return *old, false
	}

	next := &State{
		EntityID:    entityID,
		State:       state,
		Attributes:  attributes,
		LastChanged: now,
		LastUpdated: now,
	}
	if exists && old.State == state {
		next.LastChanged = old.LastChanged
	}
	m.states[entityID] = next
	return *next, true
}

// Get returns the state of entityID.
func (m *StateMachine) Get(entityID string) (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[entityID]
	if !ok {
		return State{}, false
	}
	return *state, true
}

// Remove forgets the state of entityID.
func (m *StateMachine) Remove(entityID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, entityID)
}

// All returns every state ordered by entity id.
func (m *StateMachine) All() []State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make([]State, 0, len(m.states))
	for _, state := range m.states {
		states = append(states, *state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].EntityID < states[j].EntityID })
	return states
}
