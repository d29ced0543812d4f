package geofeed

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/climaroute/navigator/internal/trip"
)

// SimulatorConfig holds configuration for the simulated position source.
type SimulatorConfig struct {
	// Track is the geometry the simulated vehicle follows (required).
	Track []trip.Coordinate

	// SpeedMPS is the simulated ground speed. Default: 13.9 (~50 km/h).
	SpeedMPS float64

	// Interval is the sample cadence. Default: 1 second.
	Interval time.Duration

	// Logger for simulator events.
	Logger zerolog.Logger
}

// Simulator replays positions along a route geometry at a fixed speed. It
// is used for development and tests when no real device feed exists.
type Simulator struct {
	track    []trip.Coordinate
	speedMPS float64
	interval time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

// NewSimulator creates a simulated source over the given track.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	speed := cfg.SpeedMPS
	if speed <= 0 {
		speed = 13.9
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	return &Simulator{
		track:    cfg.Track,
		speedMPS: speed,
		interval: interval,
		logger:   cfg.Logger,
	}
}

// Watch starts replaying the track. When the end of the track is reached
// the simulator keeps reporting the final position, like a parked vehicle.
func (s *Simulator) Watch(ctx context.Context, onSample SampleFunc, onError ErrorFunc) error {
	if len(s.track) == 0 {
		if onError != nil {
			onError(ErrUnavailable)
		}
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	go s.run(ctx, onSample)
	return nil
}

func (s *Simulator) run(ctx context.Context, onSample SampleFunc) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	segment := 0
	pos := s.track[0]
	travelled := 0.0
	stepMeters := s.speedMPS * s.interval.Seconds()

	emit := func() {
		speed := s.speedMPS
		if segment >= len(s.track)-1 {
			speed = 0
		}
		onSample(trip.Position{
			Lat:       pos.Lat,
			Lon:       pos.Lon,
			SpeedMPS:  &speed,
			Timestamp: nowFunc(),
		})
	}

	emit()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pos, segment, travelled = advance(s.track, segment, travelled, stepMeters)
			emit()
		}
	}
}

// advance walks stepMeters further along the track from the current
// segment/offset and returns the interpolated position.
func advance(track []trip.Coordinate, segment int, travelled, stepMeters float64) (trip.Coordinate, int, float64) {
	remaining := stepMeters
	for segment < len(track)-1 {
		segLen := trip.HaversineMeters(track[segment], track[segment+1])
		left := segLen - travelled
		if remaining < left {
			travelled += remaining
			frac := travelled / segLen
			a, b := track[segment], track[segment+1]
			return trip.Coordinate{
				Lat: a.Lat + frac*(b.Lat-a.Lat),
				Lon: a.Lon + frac*(b.Lon-a.Lon),
			}, segment, travelled
		}
		remaining -= left
		segment++
		travelled = 0
	}
	return track[len(track)-1], segment, 0
}

// Close stops the replay. Idempotent.
func (s *Simulator) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
}
