// Package climaroute provides the client for the ClimaRoute route
// optimization backend and the normalization boundary that maps its
// loosely-shaped responses into the typed routing model.
package climaroute

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/climaroute/navigator/internal/resilience"
	"github.com/climaroute/navigator/internal/routing"
	"github.com/climaroute/navigator/internal/trip"
	"github.com/climaroute/navigator/pkg/polyline"
)

const (
	// ProviderName identifies this routing backend.
	ProviderName = "climaroute"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the ClimaRoute routing client.
type ClientConfig struct {
	// BaseURL is the backend base URL (required), e.g. http://localhost:5000/api.
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client talks to the ClimaRoute optimization endpoint.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new ClimaRoute routing client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the backend name.
func (c *Client) Name() string {
	return ProviderName
}

// SearchRoutes retrieves scored route alternatives between two places.
func (c *Client) SearchRoutes(ctx context.Context, req routing.SearchRequest) (*routing.SearchResult, error) {
	if req.Origin == "" || req.Destination == "" {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "MISSING_ENDPOINT",
			Message:  "origin and destination are required",
			Err:      routing.ErrInvalidRequest,
		}
	}

	body, err := json.Marshal(optimizeRequest{
		Origin:      req.Origin,
		Destination: req.Destination,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := c.baseURL + "/optimize"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("origin", req.Origin).
		Str("destination", req.Destination).
		Msg("requesting route alternatives")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach routing backend",
			Err:      routing.ErrBackendUnavailable,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromStatus(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	result, err := normalizeOptimizeResponse(raw)
	if err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "MALFORMED_RESPONSE",
			Message:  "routing backend returned an unparseable response",
			Err:      err,
		}
	}

	if len(result.Alternatives) == 0 {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTES",
			Message:  "routing backend returned no alternatives",
			Err:      routing.ErrNoRouteFound,
		}
	}

	c.logger.Debug().
		Int("alternatives", len(result.Alternatives)).
		Msg("route alternatives received")

	return result, nil
}

func (c *Client) errorFromStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTES",
			Message:  "no route between the given points",
			Err:      routing.ErrNoRouteFound,
		}
	case resp.StatusCode >= 500:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message:  "routing backend error",
			Err:      routing.ErrBackendUnavailable,
		}
	default:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message:  "routing request rejected",
			Err:      routing.ErrInvalidRequest,
		}
	}
}

// normalizeOptimizeResponse maps the raw /optimize payload into typed
// routes. Unknown or malformed alternatives are dropped, never propagated.
func normalizeOptimizeResponse(raw []byte) (*routing.SearchResult, error) {
	var doc rawDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	result := &routing.SearchResult{
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}

	if coords, ok := doc.doc("startCoords", "start_coords", "originCoords"); ok {
		result.OriginCoords = normalizeCoordinate(coords)
	}
	if coords, ok := doc.doc("endCoords", "end_coords", "destCoords"); ok {
		result.DestCoords = normalizeCoordinate(coords)
	}

	alts, ok := doc.docs("alternatives", "routes")
	if !ok {
		return result, nil
	}

	for _, alt := range alts {
		route, ok := normalizeRoute(alt)
		if !ok {
			continue
		}
		result.Alternatives = append(result.Alternatives, route)
	}

	return result, nil
}

func normalizeCoordinate(doc rawDocument) *trip.Coordinate {
	lat, latOK := doc.float("lat", "latitude")
	lon, lonOK := doc.float("lon", "lng", "longitude")
	if !latOK || !lonOK {
		return nil
	}
	c := trip.Coordinate{Lat: lat, Lon: lon}
	if !c.Valid() {
		return nil
	}
	return &c
}

func normalizeRoute(doc rawDocument) (trip.Route, bool) {
	route := trip.Route{}

	geomRaw, ok := doc.field("geometry", "path", "points")
	if !ok {
		return route, false
	}
	route.Geometry = normalizeGeometry(geomRaw)
	if len(route.Geometry) == 0 {
		return route, false
	}

	if v, ok := doc.float("distance", "distanceMeters", "distance_m"); ok {
		route.DistanceMeters = v
	} else {
		// Some backend deployments omit the distance field; measure the
		// decoded geometry instead.
		route.DistanceMeters = polyline.Length(polylineCoords(route.Geometry))
	}
	if v, ok := doc.float("duration", "durationSeconds", "duration_s"); ok {
		route.DurationSeconds = v
	}
	if v, ok := doc.float("safetyScore", "safety_score", "safety"); ok {
		route.SafetyScore = v
	}
	if v, ok := doc.float("rainProbability", "rain_prob", "rainChance"); ok {
		route.RainProbability = &v
	}
	if v, ok := doc.str("condition", "weatherCondition", "weather"); ok {
		route.Condition = v
	}

	return route, true
}

func polylineCoords(coords []trip.Coordinate) []polyline.Coordinate {
	out := make([]polyline.Coordinate, len(coords))
	for i, c := range coords {
		out[i] = polyline.Coordinate{Lat: c.Lat, Lon: c.Lon}
	}
	return out
}

// normalizeGeometry accepts either a [[lat,lon],...] array or an encoded
// polyline string.
func normalizeGeometry(raw json.RawMessage) []trip.Coordinate {
	var pairs [][]float64
	if err := json.Unmarshal(raw, &pairs); err == nil {
		coords := make([]trip.Coordinate, 0, len(pairs))
		for _, p := range pairs {
			if len(p) < 2 {
				continue
			}
			c := trip.Coordinate{Lat: p[0], Lon: p[1]}
			if !c.Valid() {
				continue
			}
			coords = append(coords, c)
		}
		return coords
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		decoded := polyline.Decode(encoded)
		coords := make([]trip.Coordinate, 0, len(decoded))
		for _, p := range decoded {
			coords = append(coords, trip.Coordinate{Lat: p.Lat, Lon: p.Lon})
		}
		return coords
	}

	return nil
}
