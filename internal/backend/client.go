package backend

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
	"github.com/climaroute/navigator/internal/trip"
)

const (
	// ClientName identifies this client for the circuit breaker.
	ClientName = "fleet-backend"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the fleet backend client.
type ClientConfig struct {
	// BaseURL is the backend base URL (required).
	BaseURL string

	// DriverEmail identifies the driver on history records.
	DriverEmail string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client talks to the ClimaRoute fleet backend.
type Client struct {
	baseURL     string
	driverEmail string
	httpClient  HTTPDoer
	logger      zerolog.Logger
}

// NewClient creates a new fleet backend client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ClientName)
		clientCfg.Timeout = timeout
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:     cfg.BaseURL,
		driverEmail: cfg.DriverEmail,
		httpClient:  httpClient,
		logger:      cfg.Logger,
	}
}

// DriverEmail returns the configured driver identity.
func (c *Client) DriverEmail() string {
	return c.driverEmail
}

// CreateTrip creates an in-progress history record and returns its ID.
func (c *Client) CreateTrip(ctx context.Context, rec TripRecord) (int64, error) {
	if rec.DriverEmail == "" {
		rec.DriverEmail = c.driverEmail
	}

	doc, err := c.postJSON(ctx, "/history", rec)
	if err != nil {
		return 0, err
	}

	if id, ok := doc.float("tripId", "trip_id", "id"); ok {
		return int64(id), nil
	}
	return 0, fmt.Errorf("%w: create response carried no trip id", ErrRejected)
}

// UpdateTrip pushes partial telemetry or a status change to an existing
// record.
func (c *Client) UpdateTrip(ctx context.Context, tripID int64, update TripUpdate) error {
	body, err := json.Marshal(update)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/history/%d", c.baseURL, tripID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	return c.checkStatus(resp)
}

// CompleteTrip calls the dedicated completion endpoint.
func (c *Client) CompleteTrip(ctx context.Context, req CompleteRequest) error {
	if req.DriverEmail == "" {
		req.DriverEmail = c.driverEmail
	}
	_, err := c.postJSON(ctx, "/navigation/complete", req)
	return err
}

// CancelTrip marks the history record cancelled.
func (c *Client) CancelTrip(ctx context.Context, tripID int64) error {
	return c.UpdateTrip(ctx, tripID, TripUpdate{Status: string(StatusCancelled)})
}

// GetWeather fetches the current weather snapshot for a location. The
// response shape varies (snapshot nested under "current" in some
// deployments), so it passes through the loose-decode boundary.
func (c *Client) GetWeather(ctx context.Context, lat, lon float64) (*trip.WeatherSnapshot, error) {
	url := fmt.Sprintf("%s/weather?lat=%f&lon=%f", c.baseURL, lat, lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var doc looseDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: unparseable weather response", ErrRejected)
	}
	if inner, ok := doc.doc("current"); ok {
		doc = inner
	}

	snapshot := &trip.WeatherSnapshot{}
	if v, ok := doc.str("condition", "weatherCondition"); ok {
		snapshot.Condition = v
	}
	if v, ok := doc.float("temperature", "temp"); ok {
		snapshot.Temperature = v
	}
	if v, ok := doc.float("humidity"); ok {
		snapshot.Humidity = v
	}
	if v, ok := doc.float("windSpeed", "wind_speed"); ok {
		snapshot.WindSpeed = v
	}
	if v, ok := doc.float("rainProbability", "rain_prob"); ok {
		snapshot.RainProbability = v
	}
	return snapshot, nil
}

// CreateNotification posts a best-effort notification for admins and
// dashboards.
func (c *Client) CreateNotification(ctx context.Context, title, description, category string) error {
	if category == "" {
		category = "Info"
	}
	payload := map[string]string{
		"title":       title,
		"description": description,
		"category":    category,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}
	_, err := c.postJSON(ctx, "/notifications", payload)
	return err
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (looseDocument, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var doc looseDocument
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			c.logger.Debug().Str("path", path).Msg("backend response body not a JSON object")
			doc = looseDocument{}
		}
	}
	return doc, nil
}

func (c *Client) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}
}
