package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/gios/internal/api"
	"github.com/breatheroute/gios/internal/api/handler"
	"github.com/breatheroute/gios/internal/api/models"
	"github.com/breatheroute/gios/internal/auth"
	"github.com/breatheroute/gios/internal/coordinator"
	"github.com/breatheroute/gios/internal/gios"
	"github.com/breatheroute/gios/internal/platform"
	"github.com/breatheroute/gios/internal/provider/resilience"
)

const testSecret = "test-secret-key-for-testing-only"

type testEnv struct {
	router      http.Handler
	coordinator *coordinator.Coordinator
	tokens      *auth.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	registry := resilience.NewRegistry()
	coord := coordinator.New(coordinator.Config{
		StationID:   117,
		StationName: "Kraków, ul. Bujaka",
		Logger:      logger,
		Registry:    registry,
	})

	p := platform.New(platform.Config{Logger: logger})
	_, err := p.SetupEntry(context.Background(), platform.ConfigEntry{EntryID: "117", Name: "Home"}, coord)
	require.NoError(t, err)

	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: testSecret})
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{
		Version:   "test",
		BuildTime: "2026-10-18T00:00:00Z",
		Logger:    logger,
		Tokens:    tokens,
		Platform:  p,
		Stations:  []handler.StationStatus{coord},
		Providers: registry,
	})

	return &testEnv{router: router, coordinator: coord, tokens: tokens}
}

func (e *testEnv) get(t *testing.T, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) pushData(t *testing.T) {
	t.Helper()
	require.NoError(t, e.coordinator.SetData(&gios.Data{
		StationID:   117,
		StationName: "Kraków, ul. Bujaka",
		Sensors: gios.Snapshot{
			gios.SensorAQI:  {Index: gios.String(gios.IndexGood)},
			gios.SensorPM25: {Value: gios.Float(12.6), Index: gios.String(gios.IndexGood)},
			gios.SensorPM10: {Value: gios.Float(21.0), Index: gios.String(gios.IndexGood)},
		},
	}))
}

func TestRouter_Health(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/v1/ops/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRouter_ReadyOnceDataArrives(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusServiceUnavailable, env.get(t, "/v1/ops/ready", "").Code)

	env.pushData(t)

	assert.Equal(t, http.StatusOK, env.get(t, "/v1/ops/ready", "").Code)
}

func TestRouter_EntityReflectsCoordinatorData(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/v1/entities/air_quality.home", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var before models.EntityState
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&before))
	assert.Equal(t, "unknown", before.State)
	assert.Equal(t, gios.DefaultIcon, before.Attributes["icon"])

	env.pushData(t)

	rec = env.get(t, "/v1/entities/air_quality.home", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var after models.EntityState
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&after))
	assert.Equal(t, "13", after.State)
	assert.Equal(t, "117", after.UniqueID)
	assert.Equal(t, "mdi:emoticon-happy", after.Attributes["icon"])
	assert.Equal(t, "dobry", after.Attributes["air_quality_index"])
	assert.Equal(t, "dobry", after.Attributes["particulate_matter_2_5_index"])
	assert.Equal(t, "Kraków, ul. Bujaka", after.Attributes["station"])
	assert.Equal(t, 21.0, after.Attributes["particulate_matter_10"])
}

func TestRouter_ListEntitiesAndDevices(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/v1/entities", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entities models.EntityList
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entities))
	require.Len(t, entities.Items, 1)
	assert.Equal(t, "air_quality.home", entities.Items[0].EntityID)

	rec = env.get(t, "/v1/devices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var devices models.DeviceList
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&devices))
	require.Len(t, devices.Items, 1)
	assert.Equal(t, []models.DeviceIdentifier{{Domain: "gios", ID: "117"}}, devices.Items[0].Identifiers)
}

func TestRouter_UnknownEntity(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/v1/entities/air_quality.office", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRouter_StatusRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusUnauthorized, env.get(t, "/v1/ops/status", "").Code)
	assert.Equal(t, http.StatusUnauthorized, env.get(t, "/v1/ops/status", "not-a-token").Code)

	token, _, err := env.tokens.Generate("ops")
	require.NoError(t, err)

	env.pushData(t)
	rec := env.get(t, "/v1/ops/status", token)
	require.Equal(t, http.StatusOK, rec.Code)

	var status models.SystemStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	require.Len(t, status.Stations, 1)
	assert.Equal(t, 117, status.Stations[0].StationID)
	assert.True(t, status.Stations[0].HasData)
	assert.Equal(t, models.HealthStatusOK, status.Status)
}

func TestRouter_StatusNotMountedWithoutTokens(t *testing.T) {
	router := api.NewRouter(api.RouterConfig{
		Logger:   zerolog.New(io.Discard),
		Platform: platform.New(platform.Config{Logger: zerolog.New(io.Discard)}),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_RequireTLS(t *testing.T) {
	router := api.NewRouter(api.RouterConfig{
		Logger:     zerolog.New(io.Discard),
		RequireTLS: true,
		Platform:   platform.New(platform.Config{Logger: zerolog.New(io.Discard)}),
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/entities", http.NoBody)
	req.Header.Set("X-Forwarded-Proto", "http")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusNotFound, env.get(t, "/v1/routes", "").Code)
}

func TestProbeRouter(t *testing.T) {
	env := newTestEnv(t)
	router := api.NewProbeRouter(api.ProbeConfig{
		Version:  "test",
		Logger:   zerolog.New(io.Discard),
		Stations: []handler.StationStatus{env.coordinator},
	})

	serve := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
		return rec
	}

	assert.Equal(t, http.StatusOK, serve("/v1/ops/health").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve("/v1/ops/ready").Code)

	env.pushData(t)
	assert.Equal(t, http.StatusOK, serve("/v1/ops/ready").Code)

	// No entity API on the probe router.
	assert.Equal(t, http.StatusNotFound, serve("/v1/entities").Code)
}
