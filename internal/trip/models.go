// Package trip defines the domain model for a navigation session: the
// durable trip state, route alternatives and live position samples.
package trip

import (
	"fmt"
	"math"
	"time"
)

// Coordinate represents a geographic point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate is within geographic range.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// String formats the coordinate as a human-readable fallback place name.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.4f, %.4f", c.Lat, c.Lon)
}

// Route represents a single route alternative returned by the routing
// backend, annotated with server-computed weather and safety scores.
type Route struct {
	// Geometry is the ordered path from origin to destination.
	Geometry []Coordinate `json:"geometry"`

	// DistanceMeters is the total route distance in meters.
	DistanceMeters float64 `json:"distanceMeters"`

	// DurationSeconds is the estimated travel time in seconds.
	DurationSeconds float64 `json:"durationSeconds"`

	// SafetyScore is the server-computed 0-100 safety metric used to rank
	// alternatives. Higher is safer.
	SafetyScore float64 `json:"safetyScore"`

	// RainProbability is the 0-100 rain chance along the route, if known.
	RainProbability *float64 `json:"rainProbability,omitempty"`

	// Condition is the dominant weather condition along the route, if known.
	Condition string `json:"condition,omitempty"`
}

// Valid reports whether the route carries enough geometry to navigate.
// Routes with fewer than two points cannot be drawn or segmented.
func (r Route) Valid() bool {
	return len(r.Geometry) >= 2
}

// End returns the final geometry point.
func (r Route) End() (Coordinate, bool) {
	if len(r.Geometry) == 0 {
		return Coordinate{}, false
	}
	return r.Geometry[len(r.Geometry)-1], true
}

// Position is one geolocation sample from the device feed.
type Position struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	SpeedMPS  *float64  `json:"speedMps,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Coordinate returns the sample location as a Coordinate.
func (p Position) Coordinate() Coordinate {
	return Coordinate{Lat: p.Lat, Lon: p.Lon}
}

// WeatherSnapshot captures conditions at trip start for the history record.
type WeatherSnapshot struct {
	Condition       string  `json:"condition"`
	Temperature     float64 `json:"temperature"`
	Humidity        float64 `json:"humidity"`
	WindSpeed       float64 `json:"windSpeed"`
	RainProbability float64 `json:"rainProbability"`
}

// Segment is one of the equally spaced waypoints derived from the selected
// route geometry for downstream consumers (adaptive speed, rest points).
type Segment struct {
	Index          int        `json:"index"`
	Coord          Coordinate `json:"coord"`
	DistanceMeters float64    `json:"distanceMeters"`
	Name           string     `json:"name,omitempty"`
}

// State is the full trip state owned by the navigation session controller.
// It is the single source of truth for the in-flight trip and is persisted
// on every mutation so a restart resumes where the session left off.
type State struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`

	OriginCoords *Coordinate `json:"originCoords,omitempty"`
	DestCoords   *Coordinate `json:"destCoords,omitempty"`

	// RouteAlternatives holds the deduplicated candidates from the last
	// search or reroute evaluation.
	RouteAlternatives []Route `json:"routeAlternatives,omitempty"`

	// SelectedRouteIndex points into RouteAlternatives; nil means no route
	// has been chosen yet. Only mutable while IsNavigating is false.
	SelectedRouteIndex *int `json:"selectedRouteIndex,omitempty"`

	// IsNavigating reports whether a trip is actively tracked.
	IsNavigating bool `json:"isNavigating"`

	// Paused reports break mode: the reroute countdown is frozen.
	Paused bool `json:"paused"`

	// TripID is the backend history record identifier, when creation
	// succeeded. Zero means the trip is tracked locally only.
	TripID int64 `json:"tripId,omitempty"`

	// TripRef is a locally generated reference used before and independent
	// of backend record creation.
	TripRef string `json:"tripRef,omitempty"`

	StartTime *time.Time `json:"startTime,omitempty"`

	// RouteSelectedAt is when the currently selected route became active.
	// A rerouted alternative's duration is measured from the position at
	// selection time, so remaining ETA counts elapsed time from here, not
	// from trip start.
	RouteSelectedAt *time.Time `json:"routeSelectedAt,omitempty"`

	// TimeLeftSeconds counts down to the next reroute evaluation.
	TimeLeftSeconds int `json:"timeLeftSeconds"`

	LastKnownPosition *Position        `json:"lastKnownPosition,omitempty"`
	CurrentWeather    *WeatherSnapshot `json:"currentWeather,omitempty"`

	// Segments are the waypoints of the selected route, refreshed on each
	// route change.
	Segments []Segment `json:"segments,omitempty"`

	// LiveSpeedKMH and ETA mirror the latest telemetry pushed to the
	// backend so the dashboard can read them without another fetch.
	LiveSpeedKMH int    `json:"liveSpeedKmh,omitempty"`
	ETA          string `json:"eta,omitempty"`

	// RerouteCount tracks how many times the evaluator switched routes
	// during this trip.
	RerouteCount int `json:"rerouteCount,omitempty"`
}

// SelectedRoute returns the currently selected route alternative.
func (s *State) SelectedRoute() (Route, bool) {
	if s.SelectedRouteIndex == nil {
		return Route{}, false
	}
	i := *s.SelectedRouteIndex
	if i < 0 || i >= len(s.RouteAlternatives) {
		return Route{}, false
	}
	return s.RouteAlternatives[i], true
}

// RemainingETA computes the remaining travel time from the selected route's
// duration and the time elapsed since that route became active.
func (s *State) RemainingETA(now time.Time) (time.Duration, bool) {
	route, ok := s.SelectedRoute()
	if !ok {
		return 0, false
	}
	since := s.RouteSelectedAt
	if since == nil {
		since = s.StartTime
	}
	if since == nil {
		return 0, false
	}
	total := time.Duration(route.DurationSeconds) * time.Second
	elapsed := now.Sub(*since)
	remaining := total - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// NearDestination reports whether the last known position is within
// radiusMeters of the selected route's end point.
func (s *State) NearDestination(radiusMeters float64) bool {
	route, ok := s.SelectedRoute()
	if !ok || s.LastKnownPosition == nil {
		return false
	}
	end, ok := route.End()
	if !ok {
		return false
	}
	return HaversineMeters(s.LastKnownPosition.Coordinate(), end) <= radiusMeters
}

const earthRadiusMeters = 6371000

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
