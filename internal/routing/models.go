// Package routing provides route search against the ClimaRoute optimization
// backend, which performs path finding, weather prediction and safety
// scoring server-side.
package routing

import (
	"context"
	"errors"
	"time"

	"github.com/climaroute/navigator/internal/trip"
)

// Sentinel errors for routing operations.
var (
	// ErrBackendUnavailable indicates the routing backend is down or the
	// circuit breaker is open.
	ErrBackendUnavailable = errors.New("routing backend unavailable")
	// ErrNoRouteFound indicates the search succeeded but produced no usable
	// alternative.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrInvalidRequest indicates the origin or destination is missing or
	// malformed.
	ErrInvalidRequest = errors.New("invalid route search request")
)

// Searcher is the interface consumed by the session controller and the
// reroute evaluator.
type Searcher interface {
	// SearchRoutes retrieves scored route alternatives between two places.
	// Origin and destination are free-form: an address string or a
	// "lat,lon" pair; the backend geocodes addresses.
	SearchRoutes(ctx context.Context, req SearchRequest) (*SearchResult, error)
	// Name returns the backend identifier for logging.
	Name() string
}

// SearchRequest is the request for computing route alternatives.
type SearchRequest struct {
	Origin      string
	Destination string
}

// SearchResult is the normalized response: strongly typed routes plus the
// resolved endpoint coordinates.
type SearchResult struct {
	Alternatives []trip.Route
	OriginCoords *trip.Coordinate
	DestCoords   *trip.Coordinate
	Provider     string
	FetchedAt    time.Time
}

// Error provides detailed error information from the routing backend.
type Error struct {
	Provider string // Backend that generated the error
	Code     string // Error code
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be
// retried on the next evaluation cycle.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrBackendUnavailable)
}
