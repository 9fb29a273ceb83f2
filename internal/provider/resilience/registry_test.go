package resilience_test

import (
	"context"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/gios/internal/provider/resilience"
)

func registerGuard(registry *resilience.Registry, name string) *resilience.Guard[int] {
	cfg := resilience.DefaultGuardConfig(name)
	cfg.MaxRetries = 0
	cfg.Registry = registry
	return resilience.NewGuard[int](cfg)
}

func TestRegistry_Register(t *testing.T) {
	registry := resilience.NewRegistry()
	registerGuard(registry, "gios-117")

	assert.Equal(t, 1, registry.Len())

	health, ok := registry.Health("gios-117")
	require.True(t, ok)
	assert.Equal(t, "gios-117", health.Name)
	assert.Equal(t, gobreaker.StateClosed, health.State)
	assert.Equal(t, resilience.LevelHealthy, health.Level())
	assert.True(t, health.LastSuccessAt.IsZero())
	assert.Empty(t, health.LastError)
}

func TestRegistry_ReRegisterReplaces(t *testing.T) {
	registry := resilience.NewRegistry()
	registerGuard(registry, "gios-117")
	registry.RecordFailure("gios-117", assert.AnError)

	registerGuard(registry, "gios-117")

	assert.Equal(t, 1, registry.Len())
	health, _ := registry.Health("gios-117")
	assert.Empty(t, health.LastError)
}

func TestRegistry_RecordOutcomes(t *testing.T) {
	registry := resilience.NewRegistry()
	registerGuard(registry, "gios-117")

	registry.RecordSuccess("gios-117")
	registry.RecordFailure("gios-117", assert.AnError)

	health, ok := registry.Health("gios-117")
	require.True(t, ok)
	assert.False(t, health.LastSuccessAt.IsZero())
	assert.False(t, health.LastFailureAt.IsZero())
	assert.Equal(t, assert.AnError.Error(), health.LastError)
}

func TestRegistry_UnknownNames(t *testing.T) {
	registry := resilience.NewRegistry()

	registry.RecordSuccess("gios-999")
	registry.RecordFailure("gios-999", assert.AnError)

	_, ok := registry.Health("gios-999")
	assert.False(t, ok)
	assert.Zero(t, registry.Len())
}

func TestRegistry_AllSortedByName(t *testing.T) {
	registry := resilience.NewRegistry()
	for _, name := range []string{"gios-400", "gios-114", "gios-117"} {
		registerGuard(registry, name)
	}

	all := registry.All()
	require.Len(t, all, 3)
	assert.Equal(t, "gios-114", all[0].Name)
	assert.Equal(t, "gios-117", all[1].Name)
	assert.Equal(t, "gios-400", all[2].Name)
}

func TestRegistry_OpenBreakerIsDown(t *testing.T) {
	registry := resilience.NewRegistry()
	guard := registerGuard(registry, "gios-117")

	for i := 0; i < 3; i++ {
		_, _ = guard.Execute(context.Background(), func(context.Context) (int, error) {
			return 0, errUpstream
		})
	}

	health, _ := registry.Health("gios-117")
	assert.Equal(t, gobreaker.StateOpen, health.State)
	assert.Equal(t, resilience.LevelDown, health.Level())
	assert.Equal(t, uint32(0), health.Counts.Requests, "counts reset when the breaker opens")
}

func TestHealth_Level(t *testing.T) {
	tests := []struct {
		state gobreaker.State
		level resilience.Level
		name  string
	}{
		{gobreaker.StateClosed, resilience.LevelHealthy, "healthy"},
		{gobreaker.StateHalfOpen, resilience.LevelDegraded, "degraded"},
		{gobreaker.StateOpen, resilience.LevelDown, "down"},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			level := resilience.Health{State: tt.state}.Level()
			assert.Equal(t, tt.level, level)
			assert.Equal(t, tt.name, level.String())
		})
	}
}
