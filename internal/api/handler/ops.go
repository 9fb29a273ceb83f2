// Package handler provides HTTP handlers for the GIOŚ service API.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/breatheroute/gios/internal/api/models"
	"github.com/breatheroute/gios/internal/api/response"
	"github.com/breatheroute/gios/internal/coordinator"
	"github.com/breatheroute/gios/internal/provider/resilience"
)

// StationStatus is implemented by update coordinators.
type StationStatus interface {
	Status() coordinator.Status
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	stations  []StationStatus
	providers *resilience.Registry
	now       func() time.Time
}

// OpsConfig holds the dependencies of OpsHandler.
type OpsConfig struct {
	Version   string
	BuildTime string
	Stations  []StationStatus
	Providers *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		stations:  cfg.Stations,
		providers: cfg.Providers,
		now:       time.Now,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
			"stations":  len(h.stations),
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. The service is ready once every
// station coordinator holds data.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	waiting := make([]string, 0)
	for _, s := range h.stations {
		if st := s.Status(); !st.HasData {
			waiting = append(waiting, strconv.Itoa(st.StationID))
		}
	}

	if len(waiting) > 0 {
		response.JSON(w, r, http.StatusServiceUnavailable, models.Health{
			Status:  models.HealthStatusFail,
			Time:    models.Timestamp(h.now()),
			Details: map[string]interface{}{"waitingForStations": waiting},
		})
		return
	}

	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
	})
}

// SystemStatus handles GET /v1/ops/status - station and upstream status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(h.now()),
		Stations:  make([]models.StationStatus, 0, len(h.stations)),
		Providers: make([]models.ProviderStatus, 0),
	}

	for _, s := range h.stations {
		st := stationStatus(s.Status())
		status.Stations = append(status.Stations, st)
		status.Status = worst(status.Status, st.Status)
	}

	if h.providers != nil {
		for _, ph := range h.providers.All() {
			p := providerStatus(ph)
			status.Providers = append(status.Providers, p)
			status.Status = worst(status.Status, p.Status)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func stationStatus(s coordinator.Status) models.StationStatus {
	out := models.StationStatus{
		StationID:         s.StationID,
		StationName:       s.StationName,
		HasData:           s.HasData,
		LastUpdateSuccess: s.LastUpdateSuccess,
		FetchedAt:         models.TimestampPtr(s.FetchedAt),
		LastSuccessAt:     models.TimestampPtr(s.LastSuccessAt),
		LastFailureAt:     models.TimestampPtr(s.LastFailureAt),
		CircuitState:      s.CircuitState.String(),
	}
	if s.LastError != "" {
		out.LastError = &s.LastError
	}

	switch {
	case !s.HasData:
		out.Status = models.HealthStatusFail
	case !s.LastUpdateSuccess || s.CircuitState != gobreaker.StateClosed:
		// Stale data is still served.
		out.Status = models.HealthStatusDegraded
	default:
		out.Status = models.HealthStatusOK
	}
	return out
}

func providerStatus(h resilience.Health) models.ProviderStatus {
	out := models.ProviderStatus{
		Provider:      h.Name,
		Requests:      h.Counts.Requests,
		Failures:      h.Counts.ConsecutiveFailures,
		LastSuccessAt: models.TimestampPtr(h.LastSuccessAt),
		LastFailureAt: models.TimestampPtr(h.LastFailureAt),
	}
	if h.LastError != "" {
		msg := h.LastError
		out.Message = &msg
	}

	switch h.Level() {
	case resilience.LevelDown:
		out.Status = models.HealthStatusFail
	case resilience.LevelDegraded:
		out.Status = models.HealthStatusDegraded
	default:
		out.Status = models.HealthStatusOK
	}
	return out
}

var severity = map[models.HealthStatus]int{
	models.HealthStatusOK:       0,
	models.HealthStatusDegraded: 1,
	models.HealthStatusFail:     2,
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	if severity[b] > severity[a] {
		return b
	}
	return a
}
