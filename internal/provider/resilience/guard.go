package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for guarded operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// GuardConfig holds configuration for a Guard.
type GuardConfig struct {
	// Name identifies this guard for circuit breaker naming.
	Name string

	// Timeout bounds a single attempt.
	// Default: 30 seconds
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts.
	// Default: 3
	MaxRetries uint64

	// InitialInterval is the initial retry backoff interval.
	// Default: 500ms
	InitialInterval time.Duration

	// MaxInterval is the maximum retry backoff interval.
	// Default: 10 seconds
	MaxInterval time.Duration

	// Breaker configures the circuit breaker. If nil, uses
	// DefaultBreakerConfig.
	Breaker *BreakerConfig

	// Registry, when set, receives the guard and its success/failure outcomes.
	Registry *Registry
}

// DefaultGuardConfig returns defaults suited to a slow public data service.
func DefaultGuardConfig(name string) GuardConfig {
	breaker := DefaultBreakerConfig(name)
	return GuardConfig{
		Name:            name,
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Breaker:         &breaker,
	}
}

// Guard runs operations behind a circuit breaker with exponential backoff retries.
type Guard[T any] struct {
	circuitBreaker *gobreaker.CircuitBreaker[T]
	config         GuardConfig
}

// NewGuard creates a new Guard.
func NewGuard[T any](cfg GuardConfig) *Guard[T] {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 10 * time.Second
	}

	breaker := DefaultBreakerConfig(cfg.Name)
	if cfg.Breaker != nil {
		breaker = *cfg.Breaker
		if breaker.Name == "" {
			breaker.Name = cfg.Name
		}
	}

	g := &Guard[T]{
		circuitBreaker: newBreaker[T](breaker),
		config:         cfg,
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(g)
	}
	return g
}

// Execute runs op, retrying failures with exponential backoff.
// Returns immediately with ErrCircuitOpen if the circuit breaker is open.
// Errors wrapped with backoff.Permanent are not retried.
func (g *Guard[T]) Execute(ctx context.Context, op func(ctx context.Context) (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.config.InitialInterval
	bo.MaxInterval = g.config.MaxInterval
	bo.MaxElapsedTime = 0 // retries are bounded by WithMaxRetries

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, g.config.MaxRetries), ctx)

	var result T
	operation := func() error {
		res, err := g.circuitBreaker.Execute(func() (T, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
			defer cancel()
			return op(attemptCtx)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			return err
		}
		result = res
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		if g.config.Registry != nil {
			g.config.Registry.RecordFailure(g.config.Name, err)
		}
		var zero T
		return zero, err
	}
	if g.config.Registry != nil {
		g.config.Registry.RecordSuccess(g.config.Name)
	}
	return result, nil
}

// Name returns the guard name.
func (g *Guard[T]) Name() string {
	return g.config.Name
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (g *Guard[T]) CircuitBreakerState() gobreaker.State {
	return g.circuitBreaker.State()
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (g *Guard[T]) CircuitBreakerCounts() gobreaker.Counts {
	return g.circuitBreaker.Counts()
}
