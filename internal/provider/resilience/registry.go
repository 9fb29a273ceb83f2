package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Level classifies the health of a guarded upstream.
type Level int

const (
	LevelHealthy Level = iota
	LevelDegraded
	LevelDown
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelHealthy:
		return "healthy"
	case LevelDegraded:
		return "degraded"
	case LevelDown:
		return "down"
	default:
		return "unknown"
	}
}

// Health is a point-in-time view of one guard. Zero times mean "never".
type Health struct {
	Name          string
	State         gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt time.Time
	LastFailureAt time.Time
	LastError     string
}

// Level maps the breaker state: closed is healthy, half-open degraded and
// open down.
func (h Health) Level() Level {
	switch h.State {
	case gobreaker.StateOpen:
		return LevelDown
	case gobreaker.StateHalfOpen:
		return LevelDegraded
	default:
		return LevelHealthy
	}
}

// Breaker is the view of a guard the registry needs.
type Breaker interface {
	Name() string
	CircuitBreakerState() gobreaker.State
	CircuitBreakerCounts() gobreaker.Counts
}

// Registry collects the guards of all stations for the status endpoint.
type Registry struct {
	mu     sync.RWMutex
	guards map[string]*entry
	now    func() time.Time
}

type entry struct {
	breaker       Breaker
	lastSuccessAt time.Time
	lastFailureAt time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		guards: make(map[string]*entry),
		now:    time.Now,
	}
}

// Register adds breaker under its name, replacing an earlier one.
func (r *Registry) Register(breaker Breaker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guards[breaker.Name()] = &entry{breaker: breaker}
}

// RecordSuccess notes a successful call. Unknown names are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.guards[name]; ok {
		e.lastSuccessAt = r.now()
	}
}

// RecordFailure notes a failed call. Unknown names are ignored.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.guards[name]; ok {
		e.lastFailureAt = r.now()
		if err != nil {
			e.lastError = err.Error()
		}
	}
}

// Health returns the health of the named guard.
func (r *Registry) Health(name string) (Health, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.guards[name]
	if !ok {
		return Health{}, false
	}
	return e.health(name), true
}

// All returns the health of every guard ordered by name.
func (r *Registry) All() []Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]Health, 0, len(r.guards))
	for name, e := range r.guards {
		all = append(all, e.health(name))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// Len returns the number of registered guards.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.guards)
}

func (e *entry) health(name string) Health {
	return Health{
		Name:          name,
		State:         e.breaker.CircuitBreakerState(),
		Counts:        e.breaker.CircuitBreakerCounts(),
		LastSuccessAt: e.lastSuccessAt,
		LastFailureAt: e.lastFailureAt,
		LastError:     e.lastError,
	}
}
