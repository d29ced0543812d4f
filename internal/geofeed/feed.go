// Package geofeed produces the live stream of position samples consumed by
// the navigation session while a trip is tracked.
package geofeed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/climaroute/navigator/internal/trip"
)

// Feed errors. Both are non-fatal to the session: the UI is informed for
// display purposes and tracking continues on the last known position.
var (
	// ErrPermissionDenied indicates the device refused location access.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrUnavailable indicates the position sensor produced no fix.
	ErrUnavailable = errors.New("location unavailable")
)

// SampleFunc receives each position sample.
type SampleFunc func(trip.Position)

// ErrorFunc receives non-fatal feed errors.
type ErrorFunc func(error)

// Source is a provider of position samples. Watch blocks delivery behind
// the given callbacks until the context is cancelled or Close is called.
type Source interface {
	// Watch begins delivering samples. It returns once watching has
	// started; delivery continues in the background.
	Watch(ctx context.Context, onSample SampleFunc, onError ErrorFunc) error

	// Close releases the underlying subscription. Idempotent.
	Close()
}

// Feed manages one watch over a Source with idempotent start/stop. Once
// stopped, a Feed is done; restarting a session builds a fresh Feed over
// the same Source. The Source itself is closed at process shutdown, not
// here.
type Feed struct {
	source Source
	logger zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	stopped bool
}

// New creates a feed over the given source.
func New(source Source, logger zerolog.Logger) *Feed {
	return &Feed{source: source, logger: logger}
}

// Start begins watching. Starting an already started or stopped feed is a
// no-op.
func (f *Feed) Start(onSample SampleFunc, onError ErrorFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.started || f.stopped {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := f.source.Watch(ctx, onSample, onError); err != nil {
		cancel()
		return err
	}

	f.cancel = cancel
	f.started = true
	f.logger.Debug().Msg("geolocation feed started")
	return nil
}

// Stop cancels the watch. A sample already in flight may still be
// delivered; consumers drop samples for trips that ended. Idempotent.
func (f *Feed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stopped {
		return
	}
	f.stopped = true

	if f.cancel != nil {
		f.cancel()
	}
	f.logger.Debug().Msg("geolocation feed stopped")
}

// Running reports whether the feed is delivering samples.
func (f *Feed) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started && !f.stopped
}

// nowFunc is swapped in tests.
var nowFunc = time.Now
