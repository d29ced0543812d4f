package geofeed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/climaroute/navigator/internal/trip"
)

func TestPushSource_DeliversToWatcher(t *testing.T) {
	source := NewPushSource()
	samples := make(chan trip.Position, 1)

	feed := New(source, zerolog.Nop())
	err := feed.Start(func(p trip.Position) { samples <- p }, nil)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer feed.Stop()

	source.Push(trip.Position{Lat: 52.37, Lon: 4.89})

	select {
	case got := <-samples:
		if got.Lat != 52.37 || got.Lon != 4.89 {
			t.Errorf("unexpected sample: %+v", got)
		}
		if got.Timestamp.IsZero() {
			t.Error("expected timestamp stamped on push")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sample")
	}
}

func TestPushSource_DropsWithoutWatcher(t *testing.T) {
	source := NewPushSource()

	// No watch active: pushes are discarded, not buffered for later.
	source.Push(trip.Position{Lat: 1, Lon: 1})

	samples := make(chan trip.Position, 1)
	feed := New(source, zerolog.Nop())
	if err := feed.Start(func(p trip.Position) { samples <- p }, nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer feed.Stop()

	select {
	case got := <-samples:
		t.Errorf("expected no stale sample, got %+v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPushSource_ReusableAcrossFeeds(t *testing.T) {
	source := NewPushSource()

	first := New(source, zerolog.Nop())
	if err := first.Start(func(trip.Position) {}, nil); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	first.Stop()

	// A second trip builds a fresh feed over the same source.
	samples := make(chan trip.Position, 1)
	second := New(source, zerolog.Nop())
	if err := second.Start(func(p trip.Position) { samples <- p }, nil); err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	defer second.Stop()

	deadline := time.After(time.Second)
	for {
		source.Push(trip.Position{Lat: 52.0, Lon: 4.9})
		select {
		case <-samples:
			return
		case <-deadline:
			t.Fatal("second feed never received a sample")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPushSource_StaleWatcherDoesNotSilenceNewWatch(t *testing.T) {
	source := NewPushSource()

	first := New(source, zerolog.Nop())
	if err := first.Start(func(trip.Position) {}, nil); err != nil {
		t.Fatalf("first start failed: %v", err)
	}

	samples := make(chan trip.Position, 1)
	second := New(source, zerolog.Nop())

	// Stop and restart back to back, as cancelling one trip and starting
	// the next does. The first watch tears down asynchronously, after the
	// second watch is already active.
	first.Stop()
	if err := second.Start(func(p trip.Position) { samples <- p }, nil); err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	defer second.Stop()

	// Let the stale watch finish winding down before the single push.
	time.Sleep(50 * time.Millisecond)

	source.Push(trip.Position{Lat: 52.0, Lon: 4.9})
	select {
	case <-samples:
	case <-time.After(time.Second):
		t.Fatal("sample dropped after a stale watch settled")
	}
}

func TestPushSource_ClosedDiscards(t *testing.T) {
	source := NewPushSource()
	source.Close()

	samples := make(chan trip.Position, 1)
	feed := New(source, zerolog.Nop())
	if err := feed.Start(func(p trip.Position) { samples <- p }, nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer feed.Stop()

	source.Push(trip.Position{Lat: 1, Lon: 1})

	select {
	case <-samples:
		t.Error("expected closed source to discard pushes")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFeed_StartStopIdempotent(t *testing.T) {
	source := NewPushSource()
	feed := New(source, zerolog.Nop())

	if err := feed.Start(func(trip.Position) {}, nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := feed.Start(func(trip.Position) {}, nil); err != nil {
		t.Errorf("second start must be a no-op, got %v", err)
	}
	if !feed.Running() {
		t.Error("expected feed running")
	}

	feed.Stop()
	feed.Stop()
	if feed.Running() {
		t.Error("expected feed stopped")
	}

	// A stopped feed never restarts.
	if err := feed.Start(func(trip.Position) {}, nil); err != nil {
		t.Errorf("start after stop must be a no-op, got %v", err)
	}
	if feed.Running() {
		t.Error("expected stopped feed to stay stopped")
	}
}

func TestSimulator_ReplaysTrack(t *testing.T) {
	track := []trip.Coordinate{
		{Lat: 52.0000, Lon: 4.9000},
		{Lat: 52.0010, Lon: 4.9000},
	}

	var mu sync.Mutex
	var samples []trip.Position

	sim := NewSimulator(SimulatorConfig{
		Track:    track,
		SpeedMPS: 30,
		Interval: 5 * time.Millisecond,
		Logger:   zerolog.Nop(),
	})
	defer sim.Close()

	feed := New(sim, zerolog.Nop())
	err := feed.Start(func(p trip.Position) {
		mu.Lock()
		samples = append(samples, p)
		mu.Unlock()
	}, nil)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer feed.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(samples)
		mu.Unlock()
		if n >= 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(samples) < 3 {
		t.Fatalf("expected at least 3 samples, got %d", len(samples))
	}

	first := samples[0]
	if first.Lat != track[0].Lat || first.Lon != track[0].Lon {
		t.Errorf("expected replay to start at track origin, got %+v", first)
	}
	if first.SpeedMPS == nil || *first.SpeedMPS != 30 {
		t.Errorf("expected moving speed on first sample, got %v", first.SpeedMPS)
	}

	// Positions walk north along the segment.
	if samples[1].Lat < samples[0].Lat {
		t.Error("expected latitude to increase along the track")
	}
}

func TestSimulator_ParksAtTrackEnd(t *testing.T) {
	// A ~11m track covered in one 1000 m/s step.
	track := []trip.Coordinate{
		{Lat: 52.0000, Lon: 4.9000},
		{Lat: 52.0001, Lon: 4.9000},
	}

	samples := make(chan trip.Position, 16)
	sim := NewSimulator(SimulatorConfig{
		Track:    track,
		SpeedMPS: 1000,
		Interval: 5 * time.Millisecond,
		Logger:   zerolog.Nop(),
	})
	defer sim.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sim.Watch(ctx, func(p trip.Position) {
		select {
		case samples <- p:
		default:
		}
	}, nil); err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case p := <-samples:
			if p.Lat == track[1].Lat && p.SpeedMPS != nil && *p.SpeedMPS == 0 {
				return // parked at the end, reporting zero speed
			}
		case <-deadline:
			t.Fatal("simulator never parked at the track end")
		}
	}
}

func TestSimulator_EmptyTrackReportsUnavailable(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{Logger: zerolog.Nop()})
	defer sim.Close()

	errs := make(chan error, 1)
	err := sim.Watch(context.Background(), func(trip.Position) {}, func(err error) { errs <- err })
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	select {
	case got := <-errs:
		if got != ErrUnavailable {
			t.Errorf("expected ErrUnavailable, got %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an error for an empty track")
	}
}
