// Package resilience guards calls to external data providers with circuit
// breakers, per-attempt timeouts and retry logic.
package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures the circuit breaker of a Guard.
type BreakerConfig struct {
	Name string

	// HalfOpenRequests is how many probes may pass while half-open.
	// Default: 1
	HalfOpenRequests uint32

	// CountWindow clears the closed-state counts periodically. Zero keeps
	// them until the state changes.
	CountWindow time.Duration

	// OpenTimeout is how long the breaker stays open before probing again.
	// Default: 5 minutes
	OpenTimeout time.Duration

	// ReadyToTrip decides when to open. Default: TripAfterConsecutive(3).
	ReadyToTrip func(counts gobreaker.Counts) bool

	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig returns the breaker settings for a station polled
// every few minutes: three failed refreshes in a row open it.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		HalfOpenRequests: 1,
		OpenTimeout:      5 * time.Minute,
		ReadyToTrip:      TripAfterConsecutive(3),
	}
}

// TripAfterConsecutive opens the breaker after n consecutive failures.
func TripAfterConsecutive(n uint32) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= n
	}
}

// TripOnFailureRatio opens the breaker once at least minRequests were made
// and the failure ratio reached ratio.
func TripOnFailureRatio(minRequests uint32, ratio float64) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if counts.Requests < minRequests || counts.Requests == 0 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
	}
}

func newBreaker[T any](cfg BreakerConfig) *gobreaker.CircuitBreaker[T] {
	defaults := DefaultBreakerConfig(cfg.Name)
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = defaults.HalfOpenRequests
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = defaults.OpenTimeout
	}
	if cfg.ReadyToTrip == nil {
		cfg.ReadyToTrip = defaults.ReadyToTrip
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.HalfOpenRequests,
		Interval:      cfg.CountWindow,
		Timeout:       cfg.OpenTimeout,
		ReadyToTrip:   cfg.ReadyToTrip,
		OnStateChange: cfg.OnStateChange,
	})
}
