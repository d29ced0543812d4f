// Package config loads the navigator daemon configuration from the
// environment, with an optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the full daemon configuration.
type Config struct {
	// AppPort is the control API listen port.
	AppPort string

	// Environment names the deployment environment (development, production).
	Environment string

	// RoutingURL is the base URL of the ClimaRoute routing service.
	RoutingURL string

	// BackendURL is the base URL of the fleet backend.
	BackendURL string

	// GeocodeURL is the base URL of the reverse geocoding service. Empty
	// uses the public Nominatim instance.
	GeocodeURL string

	// DriverEmail identifies the driver on trip history records.
	DriverEmail string

	// RerouteInterval is the countdown period between reroute evaluations.
	RerouteInterval time.Duration

	// BackendTimeout bounds individual backend and routing calls.
	BackendTimeout time.Duration

	// ArrivalRadiusMeters is the arrival detection radius.
	ArrivalRadiusMeters float64

	// StateFile is the JSON file for trip state persistence. Ignored when
	// DatabaseURL is set.
	StateFile string

	// DatabaseURL selects PostgreSQL state persistence when non-empty.
	DatabaseURL string

	// NATSURL enables the position side channel when non-empty.
	NATSURL string

	// SimulateGPS replays positions along the selected route instead of
	// waiting for device pushes. Development only.
	SimulateGPS bool

	// OTLPEndpoint is the OTLP gRPC collector endpoint.
	OTLPEndpoint string

	// OTELEnabled toggles telemetry export.
	OTELEnabled bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:      getenvDefault("APP_PORT", "8080"),
		Environment:  getenvDefault("APP_ENV", "development"),
		RoutingURL:   strings.TrimRight(os.Getenv("ROUTING_URL"), "/"),
		BackendURL:   strings.TrimRight(os.Getenv("BACKEND_URL"), "/"),
		GeocodeURL:   strings.TrimRight(os.Getenv("GEOCODE_URL"), "/"),
		DriverEmail:  os.Getenv("DRIVER_EMAIL"),
		StateFile:    getenvDefault("STATE_FILE", "navigator_state.json"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		NATSURL:      os.Getenv("NATS_URL"),
		SimulateGPS:  boolEnv("GPS_SIMULATE"),
		OTLPEndpoint: getenvDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELEnabled:  boolEnv("OTEL_ENABLED"),
	}

	if cfg.RoutingURL == "" {
		return nil, errors.New("ROUTING_URL must be set")
	}
	if cfg.BackendURL == "" {
		return nil, errors.New("BACKEND_URL must be set")
	}

	var err error
	cfg.RerouteInterval, err = durationEnv("REROUTE_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.BackendTimeout, err = durationEnv("BACKEND_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("ARRIVAL_RADIUS_METERS"); v != "" {
		radius, err := strconv.ParseFloat(v, 64)
		if err != nil || radius <= 0 {
			return nil, fmt.Errorf("invalid ARRIVAL_RADIUS_METERS: %q", v)
		}
		cfg.ArrivalRadiusMeters = radius
	} else {
		cfg.ArrivalRadiusMeters = 500
	}

	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func boolEnv(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
