// Package api provides the HTTP API of the GIOŚ air quality service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/breatheroute/gios/internal/api/handler"
	"github.com/breatheroute/gios/internal/api/middleware"
	"github.com/breatheroute/gios/internal/provider/resilience"
)

// DefaultServiceName names the API in traces and logs.
const DefaultServiceName = "gios-api"

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	// Tokens validates bearer tokens for /v1/ops/status. When nil the
	// status endpoint is not mounted.
	Tokens middleware.TokenValidator

	Platform  handler.EntitySource
	Stations  []handler.StationStatus
	Providers *resilience.Registry
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Stations:  cfg.Stations,
		Providers: cfg.Providers,
	})
	entitiesHandler := handler.NewEntitiesHandler(cfg.Platform)

	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Route("/v1", func(r chi.Router) {
		// Probes are not rate limited.
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			if cfg.Tokens != nil {
				r.With(
					middleware.BearerAuth(cfg.Tokens),
					middleware.RateLimitBySubject(middleware.OpsRateLimit),
				).Get("/status", opsHandler.SystemStatus)
			}
		})

		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/entities", entitiesHandler.ListEntities)
			r.Get("/entities/{entityId}", entitiesHandler.GetEntity)
			r.Get("/devices", entitiesHandler.ListDevices)
		})
	})

	return r
}

// ProbeConfig holds configuration for the worker's probe router.
type ProbeConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Stations  []handler.StationStatus
}

// NewProbeRouter creates a router serving only the liveness and readiness
// probes, for processes that expose no entity API.
func NewProbeRouter(cfg ProbeConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Stations:  cfg.Stations,
	})

	r.Get("/v1/ops/health", opsHandler.HealthCheck)
	r.Get("/v1/ops/ready", opsHandler.ReadinessCheck)

	return r
}
