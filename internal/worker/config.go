// Package worker runs background station refreshes and the Pub/Sub
// integration of the GIOŚ service.
package worker

import (
	"time"
)

// RefreshConfig holds configuration for the station refresh job.
type RefreshConfig struct {
	// Concurrency is the number of stations refreshed in parallel.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for each station refresh.
	// Default: 2 minutes, which leaves room for the guard's retries.
	Timeout time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Concurrency: 3,
		Timeout:     2 * time.Minute,
	}
}
