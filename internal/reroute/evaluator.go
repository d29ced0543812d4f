// Package reroute implements the periodic route re-evaluation: when the
// countdown expires, fetch fresh alternatives from the current position,
// pick the safest, and hand the decision back to the session.
package reroute

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/climaroute/navigator/internal/routing"
	"github.com/climaroute/navigator/internal/trip"
)

// ErrNoValidRoute indicates the search succeeded but no alternative
// survived filtering. The cycle aborts without a route change; the caller
// still resets the countdown.
var ErrNoValidRoute = errors.New("no valid route alternative")

// SegmentCount is the number of equally spaced waypoints derived from the
// selected route for downstream consumers.
const SegmentCount = 5

// Dedup parameters: two alternatives are considered the same road if their
// first dedupPoints geometry points match at dedupPrecision decimals.
const (
	dedupPoints    = 5
	dedupPrecision = 3
)

// Config holds configuration for the evaluator.
type Config struct {
	// Searcher performs the route search (required).
	Searcher routing.Searcher

	// Logger for evaluation cycles.
	Logger zerolog.Logger
}

// Evaluator runs one reroute evaluation at a time. The session loop calls
// EvaluateOnce inline when the countdown expires, so cycles never overlap.
type Evaluator struct {
	searcher routing.Searcher
	logger   zerolog.Logger
}

// New creates an evaluator.
func New(cfg Config) *Evaluator {
	return &Evaluator{
		searcher: cfg.Searcher,
		logger:   cfg.Logger,
	}
}

// Decision is the outcome of a successful evaluation cycle.
type Decision struct {
	// Alternatives is the filtered, deduplicated candidate list.
	Alternatives []trip.Route

	// SelectedIndex points at the chosen alternative (highest safety
	// score, earliest on ties).
	SelectedIndex int

	// Segments are the equally spaced waypoints of the chosen route.
	Segments []trip.Segment

	// Message is the human-readable change notification for the UI.
	Message string
}

// Selected returns the chosen route.
func (d *Decision) Selected() trip.Route {
	return d.Alternatives[d.SelectedIndex]
}

// EvaluateOnce fetches alternatives from the current position to the
// destination and picks the safest surviving candidate.
func (e *Evaluator) EvaluateOnce(ctx context.Context, current trip.Coordinate, destination string) (*Decision, error) {
	origin := fmt.Sprintf("%f,%f", current.Lat, current.Lon)

	result, err := e.searcher.SearchRoutes(ctx, routing.SearchRequest{
		Origin:      origin,
		Destination: destination,
	})
	if err != nil {
		if errors.Is(err, routing.ErrNoRouteFound) {
			return nil, ErrNoValidRoute
		}
		return nil, err
	}

	alternatives := Deduplicate(result.Alternatives)
	if len(alternatives) == 0 {
		return nil, ErrNoValidRoute
	}

	best := SelectBest(alternatives)
	selected := alternatives[best]

	e.logger.Info().
		Int("candidates", len(result.Alternatives)).
		Int("survivors", len(alternatives)).
		Int("selected", best).
		Float64("safety_score", selected.SafetyScore).
		Msg("reroute evaluation selected a route")

	return &Decision{
		Alternatives:  alternatives,
		SelectedIndex: best,
		Segments:      Segments(selected.Geometry, SegmentCount),
		Message: fmt.Sprintf("Route updated: switched to safer path (score %.0f/100)",
			selected.SafetyScore),
	}, nil
}

// Deduplicate drops routes with fewer than two geometry points, then
// removes alternatives sharing the same initial road: identical first five
// points at three-decimal precision. First occurrence wins.
func Deduplicate(routes []trip.Route) []trip.Route {
	seen := make(map[string]struct{}, len(routes))
	out := make([]trip.Route, 0, len(routes))

	for _, r := range routes {
		if !r.Valid() {
			continue
		}
		key := geometryKey(r.Geometry)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

func geometryKey(geometry []trip.Coordinate) string {
	n := dedupPoints
	if len(geometry) < n {
		n = len(geometry)
	}

	key := make([]byte, 0, n*16)
	for _, c := range geometry[:n] {
		key = fmt.Appendf(key, "%.*f,%.*f;", dedupPrecision, c.Lat, dedupPrecision, c.Lon)
	}
	return string(key)
}

// SelectBest returns the index of the route with the maximum safety score.
// Ties are broken by the lowest index. The input must be non-empty.
func SelectBest(routes []trip.Route) int {
	best := 0
	for i, r := range routes {
		if r.SafetyScore > routes[best].SafetyScore {
			best = i
		}
	}
	return best
}

// Segments splits the geometry into n waypoints at equal cumulative
// distances, always starting at the first point and ending at the last.
func Segments(geometry []trip.Coordinate, n int) []trip.Segment {
	if len(geometry) == 0 || n <= 0 {
		return nil
	}

	total := 0.0
	for i := 1; i < len(geometry); i++ {
		total += trip.HaversineMeters(geometry[i-1], geometry[i])
	}

	segments := []trip.Segment{{Index: 0, Coord: geometry[0], DistanceMeters: 0}}
	if len(geometry) == 1 {
		return segments
	}

	target := total / float64(n)
	accumulated := 0.0
	for i := 1; i < len(geometry)-1 && len(segments) < n-1; i++ {
		accumulated += trip.HaversineMeters(geometry[i-1], geometry[i])
		if accumulated >= target {
			segments = append(segments, trip.Segment{
				Index:          len(segments),
				Coord:          geometry[i],
				DistanceMeters: accumulated,
			})
			target += total / float64(n)
		}
	}

	segments = append(segments, trip.Segment{
		Index:          len(segments),
		Coord:          geometry[len(geometry)-1],
		DistanceMeters: total,
	})
	return segments
}
