// Package geocode provides reverse geocoding of coordinates to
// human-readable place names via a Nominatim-style endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/climaroute/navigator/internal/resilience"
	"github.com/climaroute/navigator/internal/trip"
)

const (
	// DefaultBaseURL is the public Nominatim endpoint.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 8 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the geocoding client.
type ClientConfig struct {
	// BaseURL is the geocoder base URL (optional, defaults to Nominatim).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 8s).
	Timeout time.Duration

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client resolves coordinates to place names.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new geocoding client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig("geocoder")
		clientCfg.Timeout = timeout
		clientCfg.MaxRetries = 1 // place names are cosmetic, fail fast
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

type reverseResponse struct {
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		County  string `json:"county"`
		Road    string `json:"road"`
	} `json:"address"`
}

// ReverseGeocode returns the nearest settlement name for a coordinate.
// Failures never propagate: the formatted coordinate pair is returned so a
// session operation is never blocked on a cosmetic lookup.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) string {
	fallback := trip.Coordinate{Lat: lat, Lon: lon}.String()

	url := fmt.Sprintf("%s/reverse?format=json&lat=%f&lon=%f", c.baseURL, lat, lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fallback
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Msg("reverse geocode failed, using coordinates")
		return fallback
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fallback
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fallback
	}

	var decoded reverseResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fallback
	}

	addr := decoded.Address
	for _, name := range []string{addr.City, addr.Town, addr.Village, addr.County, addr.Road} {
		if name != "" {
			return name
		}
	}
	return fallback
}
