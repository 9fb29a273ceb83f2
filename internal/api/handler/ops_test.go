package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/gios/internal/api/handler"
	"github.com/breatheroute/gios/internal/api/models"
	"github.com/breatheroute/gios/internal/coordinator"
	"github.com/breatheroute/gios/internal/provider/resilience"
)

type fakeStation coordinator.Status

func (f fakeStation) Status() coordinator.Status { return coordinator.Status(f) }

func healthy(id int, name string) fakeStation {
	now := time.Now()
	return fakeStation{
		StationID:         id,
		StationName:       name,
		HasData:           true,
		LastUpdateSuccess: true,
		FetchedAt:         now,
		LastSuccessAt:     now,
		CircuitState:      gobreaker.StateClosed,
	}
}

func serve(h http.HandlerFunc, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	return rec
}

func TestHealthCheck(t *testing.T) {
	h := handler.NewOpsHandler(handler.OpsConfig{
		Version:   "1.2.3",
		BuildTime: "2026-10-18T00:00:00Z",
		Stations:  []handler.StationStatus{healthy(117, "Kraków")},
	})

	rec := serve(h.HealthCheck, "/v1/ops/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body models.Health
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, models.HealthStatusOK, body.Status)
	assert.Equal(t, "1.2.3", body.Details["version"])
	assert.Equal(t, float64(1), body.Details["stations"])
}

func TestReadinessCheck(t *testing.T) {
	waiting := fakeStation{StationID: 400, CircuitState: gobreaker.StateClosed}

	tests := []struct {
		name     string
		stations []handler.StationStatus
		want     int
		waiting  []interface{}
	}{
		{"all stations have data", []handler.StationStatus{healthy(117, "Kraków"), healthy(114, "Warszawa")}, http.StatusOK, nil},
		{"one station waiting", []handler.StationStatus{healthy(117, "Kraków"), waiting}, http.StatusServiceUnavailable, []interface{}{"400"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewOpsHandler(handler.OpsConfig{Stations: tt.stations})

			rec := serve(h.ReadinessCheck, "/v1/ops/ready")
			assert.Equal(t, tt.want, rec.Code)

			var body models.Health
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			if tt.waiting == nil {
				assert.Equal(t, models.HealthStatusOK, body.Status)
				return
			}
			assert.Equal(t, models.HealthStatusFail, body.Status)
			assert.Equal(t, tt.waiting, body.Details["waitingForStations"])
		})
	}
}

func TestSystemStatus(t *testing.T) {
	stale := healthy(114, "Warszawa")
	stale.LastUpdateSuccess = false
	stale.LastFailureAt = time.Now()
	stale.LastError = "update failed: upstream down"

	registry := resilience.NewRegistry()
	cfg := resilience.DefaultGuardConfig("gios-114")
	cfg.MaxRetries = 0
	cfg.Registry = registry
	guard := resilience.NewGuard[int](cfg)
	_, err := guard.Execute(context.Background(), func(context.Context) (int, error) {
		return 0, errors.New("upstream down")
	})
	require.Error(t, err)

	h := handler.NewOpsHandler(handler.OpsConfig{
		Stations:  []handler.StationStatus{healthy(117, "Kraków"), stale},
		Providers: registry,
	})

	rec := serve(h.SystemStatus, "/v1/ops/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body models.SystemStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	assert.Equal(t, models.HealthStatusDegraded, body.Status)
	require.Len(t, body.Stations, 2)
	assert.Equal(t, models.HealthStatusOK, body.Stations[0].Status)
	assert.Equal(t, "closed", body.Stations[0].CircuitState)
	assert.Equal(t, models.HealthStatusDegraded, body.Stations[1].Status)
	require.NotNil(t, body.Stations[1].LastError)
	assert.Equal(t, "update failed: upstream down", *body.Stations[1].LastError)

	require.Len(t, body.Providers, 1)
	assert.Equal(t, "gios-114", body.Providers[0].Provider)
	assert.Equal(t, models.HealthStatusOK, body.Providers[0].Status)
	assert.NotNil(t, body.Providers[0].LastFailureAt)
	require.NotNil(t, body.Providers[0].Message)
	assert.Equal(t, "upstream down", *body.Providers[0].Message)
}

func TestSystemStatus_StationWithoutData(t *testing.T) {
	h := handler.NewOpsHandler(handler.OpsConfig{
		Stations: []handler.StationStatus{fakeStation{StationID: 530, CircuitState: gobreaker.StateOpen}},
	})

	rec := serve(h.SystemStatus, "/v1/ops/status")

	var body models.SystemStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, models.HealthStatusFail, body.Status)
	assert.Equal(t, "open", body.Stations[0].CircuitState)
	assert.Nil(t, body.Stations[0].FetchedAt)
	assert.Empty(t, body.Providers)
}
