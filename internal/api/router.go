// Package api provides the HTTP control surface of the navigator daemon.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/climaroute/navigator/internal/api/handler"
	"github.com/climaroute/navigator/internal/api/middleware"
	"github.com/climaroute/navigator/internal/geofeed"
	"github.com/climaroute/navigator/internal/session"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	Session     *session.Controller
	Positions   *geofeed.PushSource
	Breakers    map[string]handler.BreakerStateFunc
}

// NewRouter creates a chi router with all control API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "climaroute-navigator"
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

	tripHandler := handler.NewTripHandler(cfg.Session)
	positionHandler := handler.NewPositionHandler(cfg.Positions)
	eventsHandler := handler.NewEventsHandler(cfg.Session)
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Breakers)

	searchRateLimit := middleware.RateLimitByIP(middleware.SearchRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)
	positionRateLimit := middleware.RateLimitByIP(middleware.PositionRateLimit)

	r.Route("/v1", func(r chi.Router) {
		// Route planning - fans out to the routing backend
		r.Route("/routes", func(r chi.Router) {
			r.With(searchRateLimit).Post("/search", tripHandler.SearchRoutes)
			r.With(standardRateLimit).Post("/select", tripHandler.SelectRoute)
		})

		// Trip lifecycle
		r.Route("/trip", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", tripHandler.GetTrip)
			r.Post("/start", tripHandler.StartTrip)
			r.Post("/pause", tripHandler.PauseTrip)
			r.Post("/resume", tripHandler.ResumeTrip)
			r.Post("/complete", tripHandler.CompleteTrip)
			r.Post("/cancel", tripHandler.CancelTrip)
		})

		// Device position pushes arrive at sample cadence
		r.With(positionRateLimit).Post("/position", positionHandler.PushPosition)

		// SSE event stream for the hosting UI
		r.Get("/events", eventsHandler.StreamEvents)

		// Ops endpoints
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
		})
	})

	return r
}
