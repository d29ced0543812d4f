// Package main provides the entrypoint for the ClimaRoute navigator daemon.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/climaroute/navigator/internal/api"
	"github.com/climaroute/navigator/internal/api/handler"
	"github.com/climaroute/navigator/internal/api/middleware"
	"github.com/climaroute/navigator/internal/backend"
	"github.com/climaroute/navigator/internal/config"
	"github.com/climaroute/navigator/internal/geocode"
	"github.com/climaroute/navigator/internal/geofeed"
	"github.com/climaroute/navigator/internal/publisher"
	"github.com/climaroute/navigator/internal/resilience"
	"github.com/climaroute/navigator/internal/routing/climaroute"
	"github.com/climaroute/navigator/internal/session"
	"github.com/climaroute/navigator/internal/statestore"
	"github.com/climaroute/navigator/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "climaroute-navigator"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting ClimaRoute navigator")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTELEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Trip state persistence: PostgreSQL when configured, a local JSON
	// file otherwise.
	var store statestore.Store
	if cfg.DatabaseURL != "" {
		pgStore, err := statestore.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to state database")
		}
		defer pgStore.Close()
		store = pgStore
		log.Info().Msg("trip state persisted to postgres")
	} else {
		fileStore, err := statestore.NewFileStore(cfg.StateFile)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open state file")
		}
		store = fileStore
		log.Info().Str("path", cfg.StateFile).Msg("trip state persisted to file")
	}
	tripStore := statestore.NewTripStore(store, log)

	// Upstream HTTP clients share the resilient transport so the ops
	// endpoint can report breaker states.
	routingTransport := resilience.NewClient(resilienceConfig(climaroute.ProviderName, cfg.BackendTimeout))
	backendTransport := resilience.NewClient(resilienceConfig(backend.ClientName, cfg.BackendTimeout))

	searcher := climaroute.NewClient(climaroute.ClientConfig{
		BaseURL:    cfg.RoutingURL,
		HTTPClient: routingTransport,
		Timeout:    cfg.BackendTimeout,
		Logger:     log,
	})

	backendClient := backend.NewClient(backend.ClientConfig{
		BaseURL:     cfg.BackendURL,
		DriverEmail: cfg.DriverEmail,
		HTTPClient:  backendTransport,
		Timeout:     cfg.BackendTimeout,
		Logger:      log,
	})

	geocoder := geocode.NewClient(geocode.ClientConfig{
		BaseURL: cfg.GeocodeURL,
		Logger:  log,
	})

	var positionPublisher session.PositionPublisher
	if cfg.NATSURL != "" {
		natsPublisher, err := publisher.NewNATSPublisher(cfg.NATSURL, log)
		if err != nil {
			log.Warn().Err(err).Msg("position side channel unavailable, continuing without it")
		} else {
			defer natsPublisher.Close()
			positionPublisher = natsPublisher
			log.Info().Str("nats_url", cfg.NATSURL).Msg("position side channel connected")
		}
	}

	positions := geofeed.NewPushSource()

	controller, err := session.New(ctx, session.Config{
		Store:               tripStore,
		Searcher:            searcher,
		Backend:             backendClient,
		Geocoder:            geocoder,
		Publisher:           positionPublisher,
		Source:              positions,
		Simulate:            cfg.SimulateGPS,
		RerouteInterval:     cfg.RerouteInterval,
		BackendTimeout:      cfg.BackendTimeout,
		ArrivalRadiusMeters: cfg.ArrivalRadiusMeters,
		Logger:              log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize navigation session")
	}

	loopCtx, stopLoop := context.WithCancel(ctx)
	go controller.Run(loopCtx)

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Session:     controller,
		Positions:   positions,
		Breakers: map[string]handler.BreakerStateFunc{
			climaroute.ProviderName: func() string { return routingTransport.CircuitBreakerState().String() },
			backend.ClientName:      func() string { return backendTransport.CircuitBreakerState().String() },
		},
	})

	server := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("control API listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	stopLoop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Persists active trip state so the next boot resumes navigation, and
	// closes the event bus so streaming handlers unblock before the server
	// waits on them.
	controller.Shutdown(shutdownCtx)

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("stopped")
}

func resilienceConfig(name string, timeout time.Duration) resilience.ClientConfig {
	cfg := resilience.DefaultClientConfig(name)
	cfg.Timeout = timeout
	return cfg
}
