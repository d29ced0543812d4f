// Package session implements the navigation session controller: the trip
// lifecycle (start, pause, resume, complete, cancel), the live position
// feed, and the countdown-driven reroute evaluation loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/climaroute/navigator/internal/backend"
	"github.com/climaroute/navigator/internal/geofeed"
	"github.com/climaroute/navigator/internal/reroute"
	"github.com/climaroute/navigator/internal/routing"
	"github.com/climaroute/navigator/internal/statestore"
	"github.com/climaroute/navigator/internal/telemetry"
	"github.com/climaroute/navigator/internal/trip"
)

// Backend is the slice of the fleet backend the session depends on.
type Backend interface {
	CreateTrip(ctx context.Context, rec backend.TripRecord) (int64, error)
	UpdateTrip(ctx context.Context, tripID int64, update backend.TripUpdate) error
	CompleteTrip(ctx context.Context, req backend.CompleteRequest) error
	CancelTrip(ctx context.Context, tripID int64) error
	GetWeather(ctx context.Context, lat, lon float64) (*trip.WeatherSnapshot, error)
	CreateNotification(ctx context.Context, title, description, category string) error
	DriverEmail() string
}

// Geocoder resolves coordinates to place names, with a formatted-coordinate
// fallback built in.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) string
}

// PositionPublisher is the optional fire-and-forget side channel for live
// position fan-out.
type PositionPublisher interface {
	PublishPosition(tripRef string, p trip.Position) error
}

// Config holds configuration for the session controller.
type Config struct {
	// Store persists trip state across restarts (required).
	Store *statestore.TripStore

	// Searcher performs route searches (required).
	Searcher routing.Searcher

	// Backend is the fleet backend client (required).
	Backend Backend

	// Geocoder names locations for segments and notifications (optional).
	Geocoder Geocoder

	// Publisher is the optional NATS position side channel.
	Publisher PositionPublisher

	// Source supplies position samples (required). The controller owns a
	// fresh feed over it per trip and closes it on Shutdown.
	Source geofeed.Source

	// Simulate replays the selected route geometry instead of listening
	// to Source. Development only.
	Simulate bool

	// RerouteInterval is the countdown period between reroute
	// evaluations. Default: 1 hour.
	RerouteInterval time.Duration

	// BackendTimeout bounds each backend call made by the session.
	// Default: 10 seconds.
	BackendTimeout time.Duration

	// ArrivalRadiusMeters is the distance to the route end within which
	// the trip counts as arrived. Default: 500.
	ArrivalRadiusMeters float64

	// Logger for session operations.
	Logger zerolog.Logger
}

// Snapshot is the state view exposed to the UI layer.
type Snapshot struct {
	State           trip.State `json:"state"`
	NearDestination bool       `json:"nearDestination"`
}

// Controller owns the trip state. All mutations are serialized through one
// mutex; the 1 Hz loop and the operation entry points are the only writers.
type Controller struct {
	store           *statestore.TripStore
	searcher        routing.Searcher
	backend         Backend
	geocoder        Geocoder
	publisher       PositionPublisher
	source          geofeed.Source
	simulate        bool
	rerouteInterval time.Duration
	backendTimeout  time.Duration
	arrivalRadius   float64
	logger          zerolog.Logger

	evaluator *reroute.Evaluator
	events    *eventBus

	rerouteCounter metric.Int64Counter
	sampleCounter  metric.Int64Counter

	mu    sync.Mutex
	state *trip.State
	feed  *geofeed.Feed
}

// New creates the controller and restores persisted state. If a previous
// session left navigation active, the position feed resumes immediately
// without user action.
func New(ctx context.Context, cfg Config) (*Controller, error) {
	if cfg.Store == nil || cfg.Searcher == nil || cfg.Backend == nil || cfg.Source == nil {
		return nil, errors.New("session: store, searcher, backend and source are required")
	}

	if cfg.RerouteInterval <= 0 {
		cfg.RerouteInterval = time.Hour
	}
	if cfg.BackendTimeout <= 0 {
		cfg.BackendTimeout = 10 * time.Second
	}
	if cfg.ArrivalRadiusMeters <= 0 {
		cfg.ArrivalRadiusMeters = 500
	}

	c := &Controller{
		store:           cfg.Store,
		searcher:        cfg.Searcher,
		backend:         cfg.Backend,
		geocoder:        cfg.Geocoder,
		publisher:       cfg.Publisher,
		source:          cfg.Source,
		simulate:        cfg.Simulate,
		rerouteInterval: cfg.RerouteInterval,
		backendTimeout:  cfg.BackendTimeout,
		arrivalRadius:   cfg.ArrivalRadiusMeters,
		logger:          cfg.Logger,
		events:          newEventBus(),
		evaluator: reroute.New(reroute.Config{
			Searcher: cfg.Searcher,
			Logger:   cfg.Logger,
		}),
	}

	meter := telemetry.Meter("navigator")
	if counter, err := meter.Int64Counter("navigator.reroutes"); err == nil {
		c.rerouteCounter = counter
	}
	if counter, err := meter.Int64Counter("navigator.position_samples"); err == nil {
		c.sampleCounter = counter
	}

	c.state = cfg.Store.Load(ctx)
	if c.state.TimeLeftSeconds <= 0 || c.state.TimeLeftSeconds > int(c.rerouteInterval.Seconds()) {
		c.state.TimeLeftSeconds = int(c.rerouteInterval.Seconds())
	}

	if c.state.IsNavigating {
		c.logger.Info().
			Str("trip_ref", c.state.TripRef).
			Int64("trip_id", c.state.TripID).
			Msg("resuming navigation from persisted state")
		c.startFeedLocked()
	}

	return c, nil
}

// Run drives the countdown at 1 Hz until the context is cancelled.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick advances the countdown and triggers an evaluation at zero. The
// evaluation runs inline, so cycles can never overlap.
func (c *Controller) tick(ctx context.Context) {
	c.mu.Lock()
	if !c.state.IsNavigating || c.state.Paused {
		c.mu.Unlock()
		return
	}

	c.state.TimeLeftSeconds--
	if c.state.TimeLeftSeconds > 0 {
		c.saveLocked(ctx)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.evaluate(ctx)
}

// evaluate runs one reroute cycle. The countdown is always re-armed,
// whether the cycle succeeded, found nothing, or failed outright.
func (c *Controller) evaluate(ctx context.Context) {
	c.mu.Lock()
	if !c.state.IsNavigating || c.state.LastKnownPosition == nil {
		c.state.TimeLeftSeconds = int(c.rerouteInterval.Seconds())
		c.saveLocked(ctx)
		c.mu.Unlock()
		return
	}
	current := c.state.LastKnownPosition.Coordinate()
	destination := c.state.Destination
	tripRef := c.state.TripRef
	c.mu.Unlock()

	evalCtx, cancel := context.WithTimeout(ctx, c.backendTimeout)
	decision, err := c.evaluator.EvaluateOnce(evalCtx, current, destination)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	// A completed or cancelled trip must not be resurrected by a cycle
	// that was in flight when it ended.
	if c.state.TripRef != tripRef || !c.state.IsNavigating {
		return
	}

	c.state.TimeLeftSeconds = int(c.rerouteInterval.Seconds())

	switch {
	case err == nil:
		c.applyDecisionLocked(ctx, decision)
	case errors.Is(err, reroute.ErrNoValidRoute):
		c.logger.Warn().Msg("reroute evaluation found no valid route, keeping current path")
		c.events.publish(EventNoValidRoute, "No valid route found. Continuing on current path.")
	default:
		c.logger.Warn().Err(err).Msg("reroute evaluation failed, keeping current path")
		c.events.publish(EventError, "Auto-reroute failed. Continuing on current path.")
	}

	c.saveLocked(ctx)
}

func (c *Controller) applyDecisionLocked(ctx context.Context, decision *reroute.Decision) {
	idx := decision.SelectedIndex
	now := time.Now()
	c.state.RouteAlternatives = decision.Alternatives
	c.state.SelectedRouteIndex = &idx
	c.state.Segments = decision.Segments
	c.state.RerouteCount++

	// The new route's duration starts counting from here: it was computed
	// from the current position, not from the trip origin.
	c.state.RouteSelectedAt = &now
	c.state.ETA = fmt.Sprintf("%d min", int(math.Round(decision.Selected().DurationSeconds/60)))

	if c.rerouteCounter != nil {
		c.rerouteCounter.Add(ctx, 1)
	}

	c.events.publish(EventRerouted, decision.Message)

	selected := decision.Selected()
	go c.notify(fmt.Sprintf("Path updated due to weather. New safety score: %.0f/100",
		selected.SafetyScore))
	go c.nameSegments(c.state.TripRef, decision.Segments)
}

// nameSegments resolves place names for the route waypoints, best-effort.
// Names land on the state only if the same trip is still active.
func (c *Controller) nameSegments(tripRef string, segments []trip.Segment) {
	if c.geocoder == nil || len(segments) == 0 {
		return
	}

	names := make([]string, len(segments))
	for i, seg := range segments {
		ctx, cancel := context.WithTimeout(context.Background(), c.backendTimeout)
		names[i] = c.geocoder.ReverseGeocode(ctx, seg.Coord.Lat, seg.Coord.Lon)
		cancel()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.TripRef != tripRef || len(c.state.Segments) != len(names) {
		return
	}
	for i := range c.state.Segments {
		c.state.Segments[i].Name = names[i]
	}
	c.saveLocked(context.Background())
}

// Search finds route alternatives for the given endpoints. Only valid while
// no trip is tracked: the selection may not change mid-navigation.
func (c *Controller) Search(ctx context.Context, origin, destination string) (*Snapshot, error) {
	if origin == "" || destination == "" {
		return nil, fmt.Errorf("%w: origin and destination are required", ErrValidation)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.IsNavigating {
		return nil, fmt.Errorf("%w: cannot search while navigating", ErrValidation)
	}

	searchCtx, cancel := context.WithTimeout(ctx, c.backendTimeout)
	defer cancel()

	result, err := c.searcher.SearchRoutes(searchCtx, routing.SearchRequest{
		Origin:      origin,
		Destination: destination,
	})
	if err != nil {
		if errors.Is(err, routing.ErrNoRouteFound) {
			return nil, ErrNoValidRoute
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	alternatives := reroute.Deduplicate(result.Alternatives)
	if len(alternatives) == 0 {
		return nil, ErrNoValidRoute
	}

	best := reroute.SelectBest(alternatives)

	c.state.Origin = origin
	c.state.Destination = destination
	c.state.OriginCoords = result.OriginCoords
	c.state.DestCoords = result.DestCoords
	c.state.RouteAlternatives = alternatives
	c.state.SelectedRouteIndex = &best
	if result.OriginCoords != nil {
		c.state.LastKnownPosition = &trip.Position{
			Lat:       result.OriginCoords.Lat,
			Lon:       result.OriginCoords.Lon,
			Timestamp: time.Now(),
		}
	}

	c.saveLocked(ctx)
	return c.snapshotLocked(), nil
}

// SelectRoute changes the selected alternative. Only valid while no trip is
// tracked.
func (c *Controller) SelectRoute(ctx context.Context, index int) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.IsNavigating {
		return nil, fmt.Errorf("%w: cannot change routes while navigating", ErrValidation)
	}
	if index < 0 || index >= len(c.state.RouteAlternatives) {
		return nil, fmt.Errorf("%w: route index %d out of range", ErrValidation, index)
	}

	c.state.SelectedRouteIndex = &index
	c.saveLocked(ctx)
	return c.snapshotLocked(), nil
}

// Start begins navigation on the selected route: captures the starting
// position and weather, creates the backend history record and starts the
// position feed. Backend record creation is best-effort; on failure the
// trip is tracked locally with no trip ID.
func (c *Controller) Start(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.IsNavigating {
		return nil, fmt.Errorf("%w: navigation already active", ErrValidation)
	}
	route, ok := c.state.SelectedRoute()
	if !ok {
		return nil, fmt.Errorf("%w: no route selected", ErrValidation)
	}

	now := time.Now()
	c.state.IsNavigating = true
	c.state.Paused = false
	c.state.StartTime = &now
	c.state.RouteSelectedAt = &now
	c.state.TimeLeftSeconds = int(c.rerouteInterval.Seconds())
	c.state.TripRef = "TRIP-" + uuid.New().String()[:8]
	c.state.TripID = 0
	c.state.RerouteCount = 0
	c.state.ETA = fmt.Sprintf("%d min", int(math.Round(route.DurationSeconds/60)))
	c.state.Segments = reroute.Segments(route.Geometry, reroute.SegmentCount)

	start := c.startPositionLocked(route)
	c.state.LastKnownPosition = &trip.Position{Lat: start.Lat, Lon: start.Lon, Timestamp: now}

	// Weather at departure, best-effort.
	weatherCtx, cancel := context.WithTimeout(ctx, c.backendTimeout)
	if snapshot, err := c.backend.GetWeather(weatherCtx, start.Lat, start.Lon); err != nil {
		c.logger.Warn().Err(err).Msg("failed to fetch departure weather")
	} else {
		c.state.CurrentWeather = snapshot
	}
	cancel()

	// Backend history record, best-effort: the trip still runs locally if
	// creation fails, it just won't appear in history.
	createCtx, cancel := context.WithTimeout(ctx, c.backendTimeout)
	tripID, err := c.backend.CreateTrip(createCtx, c.tripRecordLocked(route, start, now))
	cancel()
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to create backend trip record, tracking locally")
		c.events.publish(EventError, "Trip started without a history record (backend unreachable).")
	} else {
		c.state.TripID = tripID
	}

	c.startFeedLocked()
	c.saveLocked(ctx)
	go c.nameSegments(c.state.TripRef, c.state.Segments)

	c.logger.Info().
		Str("trip_ref", c.state.TripRef).
		Int64("trip_id", c.state.TripID).
		Str("destination", c.state.Destination).
		Msg("navigation started")
	c.events.publish(EventTripStarted, "Navigation started.")

	return c.snapshotLocked(), nil
}

// Pause enters break mode: the reroute countdown freezes without resetting.
func (c *Controller) Pause(ctx context.Context) (*Snapshot, error) {
	return c.setPaused(ctx, true)
}

// Resume leaves break mode.
func (c *Controller) Resume(ctx context.Context) (*Snapshot, error) {
	return c.setPaused(ctx, false)
}

func (c *Controller) setPaused(ctx context.Context, paused bool) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsNavigating {
		return nil, fmt.Errorf("%w: no active navigation", ErrValidation)
	}
	if c.state.Paused == paused {
		return c.snapshotLocked(), nil
	}

	c.state.Paused = paused
	c.saveLocked(ctx)

	status := string(backend.StatusInProgress)
	kind, msg := EventTripResumed, "Break ended, tracking resumed."
	if paused {
		status = string(backend.StatusPaused)
		kind, msg = EventTripPaused, "Break started, reroute timer frozen."
	}
	c.events.publish(kind, msg)

	// Status sync is best-effort; a failure is logged, never surfaced.
	if tripID := c.state.TripID; tripID != 0 {
		go func() {
			pushCtx, cancel := context.WithTimeout(context.Background(), c.backendTimeout)
			defer cancel()
			if err := c.backend.UpdateTrip(pushCtx, tripID, backend.TripUpdate{Status: status}); err != nil {
				c.logger.Warn().Err(err).Msg("failed to sync pause state to backend")
			}
		}()
	}

	return c.snapshotLocked(), nil
}

// Cancel aborts the trip. It requires explicit prior confirmation, marks
// the backend record cancelled (best-effort), halts the feed and clears all
// trip state.
func (c *Controller) Cancel(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return fmt.Errorf("%w: cancelling discards the active trip", ErrConfirmationRequired)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsNavigating {
		return fmt.Errorf("%w: no active navigation", ErrValidation)
	}

	if c.state.TripID != 0 {
		cancelCtx, cancel := context.WithTimeout(ctx, c.backendTimeout)
		if err := c.backend.CancelTrip(cancelCtx, c.state.TripID); err != nil {
			c.logger.Warn().Err(err).Msg("failed to mark backend trip cancelled")
		}
		cancel()
	}

	c.stopFeedLocked()
	c.clearTripLocked(ctx)

	c.logger.Info().Msg("navigation cancelled")
	c.events.publish(EventTripCancelled, "Trip cancelled.")
	return nil
}

// Complete finalizes the trip with two-phase discipline: the backend must
// confirm completion (or the fallback status update must succeed) before
// any local state is cleared. If both fail, state is kept so the user can
// retry without losing the in-progress record.
func (c *Controller) Complete(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsNavigating {
		return fmt.Errorf("%w: no active navigation", ErrValidation)
	}

	now := time.Now()
	status := backend.StatusNotCompleted
	if c.state.NearDestination(c.arrivalRadius) {
		status = backend.StatusCompleted
	}

	if err := c.finalizeBackendLocked(ctx, status, now); err != nil {
		c.logger.Error().Err(err).Msg("trip completion not confirmed by backend, keeping local state")
		c.events.publish(EventError, "Could not save the trip. Check your connection and retry.")
		return fmt.Errorf("%w: completion not confirmed", ErrBackendUnavailable)
	}

	c.stopFeedLocked()
	c.clearTripLocked(ctx)

	c.logger.Info().Str("status", string(status)).Msg("navigation completed")
	c.events.publish(EventTripCompleted, "Trip saved to history.")
	return nil
}

// finalizeBackendLocked runs the completion endpoint and, on failure, the
// best-effort status-update fallback. A trip with no backend record is
// recorded via a late create.
func (c *Controller) finalizeBackendLocked(ctx context.Context, status backend.TripStatus, now time.Time) error {
	endTime := now.Format("15:04")

	var lat, lon *float64
	if pos := c.state.LastKnownPosition; pos != nil {
		lat, lon = &pos.Lat, &pos.Lon
	}

	if c.state.TripID != 0 {
		completeCtx, cancel := context.WithTimeout(ctx, c.backendTimeout)
		err := c.backend.CompleteTrip(completeCtx, backend.CompleteRequest{
			TripID:     c.state.TripID,
			EndTime:    endTime,
			CurrentLat: lat,
			CurrentLon: lon,
		})
		cancel()
		if err == nil {
			return nil
		}
		c.logger.Warn().Err(err).Msg("completion endpoint failed, trying status update fallback")

		update := backend.TripUpdate{
			Status:         string(status),
			EndTime:        endTime,
			CurrentLat:     lat,
			CurrentLon:     lon,
			DestinationLat: lat,
			DestinationLon: lon,
		}
		fallbackCtx, cancel := context.WithTimeout(ctx, c.backendTimeout)
		err = c.backend.UpdateTrip(fallbackCtx, c.state.TripID, update)
		cancel()
		return err
	}

	// No record was created at start; write the completed trip now.
	route, ok := c.state.SelectedRoute()
	if !ok {
		return errors.New("no selected route to record")
	}
	start := trip.Coordinate{}
	if c.state.OriginCoords != nil {
		start = *c.state.OriginCoords
	}
	rec := c.tripRecordLocked(route, start, now)
	rec.Status = string(status)
	rec.EndTime = endTime
	if c.state.StartTime != nil {
		minutes := now.Sub(*c.state.StartTime).Minutes()
		rec.DurationMinutes = &minutes
	}
	rec.Notes = fmt.Sprintf("Auto-rerouted %d times", c.state.RerouteCount)

	createCtx, cancel := context.WithTimeout(ctx, c.backendTimeout)
	defer cancel()
	_, err := c.backend.CreateTrip(createCtx, rec)
	return err
}

// Snapshot returns the current state view.
func (c *Controller) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe returns a channel of session events and an unsubscribe func.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	return c.events.subscribe()
}

// Shutdown halts the feed and persists state without clearing it, so the
// next boot resumes an active trip.
func (c *Controller) Shutdown(ctx context.Context) {
	c.mu.Lock()
	c.stopFeedLocked()
	c.saveLocked(ctx)
	c.mu.Unlock()

	c.source.Close()
	c.events.close()
}

// --- internals ---

func (c *Controller) startFeedLocked() {
	source := c.source
	if c.simulate {
		if route, ok := c.state.SelectedRoute(); ok {
			source = geofeed.NewSimulator(geofeed.SimulatorConfig{
				Track:  route.Geometry,
				Logger: c.logger,
			})
		}
	}

	feed := geofeed.New(source, c.logger)
	if err := feed.Start(c.onSample, c.onFeedError); err != nil {
		c.logger.Warn().Err(err).Msg("failed to start geolocation feed")
		return
	}
	c.feed = feed
}

func (c *Controller) stopFeedLocked() {
	if c.feed != nil {
		c.feed.Stop()
		c.feed = nil
	}
}

// onSample records the position, refreshes speed and ETA, and pushes
// telemetry fire-and-forget. A late sample after the trip ended is dropped.
func (c *Controller) onSample(p trip.Position) {
	c.mu.Lock()

	if !c.state.IsNavigating {
		c.mu.Unlock()
		return
	}

	c.state.LastKnownPosition = &p
	if p.SpeedMPS != nil && !c.state.Paused {
		c.state.LiveSpeedKMH = int(math.Round(*p.SpeedMPS * 3.6))
	}
	if remaining, ok := c.state.RemainingETA(time.Now()); ok {
		c.state.ETA = fmt.Sprintf("%d min", int(math.Round(remaining.Minutes())))
	}

	tripID := c.state.TripID
	tripRef := c.state.TripRef
	speed := c.state.LiveSpeedKMH
	eta := c.state.ETA

	c.saveLocked(context.Background())
	c.mu.Unlock()

	if c.sampleCounter != nil {
		c.sampleCounter.Add(context.Background(), 1)
	}

	// Telemetry is fire-and-forget: each push carries the latest values,
	// so a lost or late push is superseded by the next one.
	go c.pushTelemetry(tripID, tripRef, p, speed, eta)
}

func (c *Controller) pushTelemetry(tripID int64, tripRef string, p trip.Position, speedKMH int, eta string) {
	if c.publisher != nil {
		if err := c.publisher.PublishPosition(tripRef, p); err != nil {
			c.logger.Debug().Err(err).Msg("position publish failed")
		}
	}

	if tripID == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.backendTimeout)
	defer cancel()

	update := backend.TripUpdate{
		CurrentLat: &p.Lat,
		CurrentLon: &p.Lon,
		ETA:        eta,
		Status:     string(backend.StatusInProgress),
	}
	if p.SpeedMPS != nil {
		update.SpeedKMH = &speedKMH
	}

	if err := c.backend.UpdateTrip(ctx, tripID, update); err != nil {
		c.logger.Debug().Err(err).Msg("telemetry update failed")
	}
}

func (c *Controller) onFeedError(err error) {
	c.logger.Warn().Err(err).Msg("geolocation feed error")
	switch {
	case errors.Is(err, geofeed.ErrPermissionDenied):
		c.events.publish(EventError, "Location permission denied. Please enable GPS.")
	case errors.Is(err, geofeed.ErrUnavailable):
		c.events.publish(EventError, "GPS unavailable. Using last known position.")
	default:
		c.events.publish(EventError, "Location error: "+err.Error())
	}
}

func (c *Controller) notify(description string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.backendTimeout)
	defer cancel()
	if err := c.backend.CreateNotification(ctx, "Auto Reroute", description, "Critical"); err != nil {
		c.logger.Debug().Err(err).Msg("failed to send reroute notification")
	}
}

// startPositionLocked picks the best known starting coordinate: the live
// position if present, otherwise the searched origin.
func (c *Controller) startPositionLocked(route trip.Route) trip.Coordinate {
	if pos := c.state.LastKnownPosition; pos != nil {
		return pos.Coordinate()
	}
	if c.state.OriginCoords != nil {
		return *c.state.OriginCoords
	}
	return route.Geometry[0]
}

func (c *Controller) tripRecordLocked(route trip.Route, start trip.Coordinate, now time.Time) backend.TripRecord {
	rec := backend.TripRecord{
		RouteID:     c.state.TripRef,
		Date:        now.Format("2006-01-02"),
		StartTime:   now.Format("15:04"),
		Origin:      c.state.Origin,
		Destination: c.state.Destination,
		OriginLat:   &start.Lat,
		OriginLon:   &start.Lon,
		Distance:    fmt.Sprintf("%.2f", route.DistanceMeters/1000),
		Status:      string(backend.StatusInProgress),
		DriverEmail: c.backend.DriverEmail(),
		CurrentLat:  &start.Lat,
		CurrentLon:  &start.Lon,
		ETA:         c.state.ETA,
	}

	if end, ok := route.End(); ok {
		rec.DestinationLat = &end.Lat
		rec.DestinationLon = &end.Lon
	}

	condition := route.Condition
	if w := c.state.CurrentWeather; w != nil {
		if condition == "" {
			condition = w.Condition
		}
		rec.Temperature = &w.Temperature
		rec.Humidity = &w.Humidity
		rec.WindSpeed = &w.WindSpeed
		if route.RainProbability != nil {
			rec.RainProbability = route.RainProbability
		} else {
			rec.RainProbability = &w.RainProbability
		}
	}
	if condition == "" {
		condition = "Unknown"
	}
	rec.Weather = condition
	rec.WeatherCondition = condition

	return rec
}

func (c *Controller) clearTripLocked(ctx context.Context) {
	if err := c.store.ClearTripData(ctx); err != nil {
		c.logger.Error().Err(err).Msg("failed to clear persisted trip state")
	}
	c.state = &trip.State{TimeLeftSeconds: int(c.rerouteInterval.Seconds())}
}

func (c *Controller) saveLocked(ctx context.Context) {
	if err := c.store.Save(ctx, c.state); err != nil {
		c.logger.Error().Err(err).Msg("failed to persist trip state")
	}
}

func (c *Controller) snapshotLocked() *Snapshot {
	return &Snapshot{
		State:           *c.state,
		NearDestination: c.state.NearDestination(c.arrivalRadius),
	}
}
