package geofeed

import (
	"context"
	"sync"

	"github.com/climaroute/navigator/internal/trip"
)

// PushSource receives samples pushed from outside the process: the hosting
// UI posts device positions to the control API, which forwards them here.
type PushSource struct {
	mu       sync.Mutex
	ch       chan trip.Position
	closed   bool
	watching bool
	gen      uint64
}

// NewPushSource creates a push source with a small buffer; a slow consumer
// drops the oldest sample since each sample supersedes the previous one.
func NewPushSource() *PushSource {
	return &PushSource{ch: make(chan trip.Position, 8)}
}

// Push delivers a sample to the active watcher. Samples pushed while no
// watch is active, or after Close, are discarded.
func (p *PushSource) Push(sample trip.Position) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || !p.watching {
		return
	}

	if sample.Timestamp.IsZero() {
		sample.Timestamp = nowFunc()
	}

	select {
	case p.ch <- sample:
	default:
		// Buffer full: drop the oldest, latest position wins.
		select {
		case <-p.ch:
		default:
		}
		p.ch <- sample
	}
}

// Watch begins delivering pushed samples until the context is cancelled.
// A cancelled watch drains its buffer so a later watch starts clean. Each
// watch carries a generation number; a stale watch winding down after a
// newer one started must not touch the newer watch's state.
func (p *PushSource) Watch(ctx context.Context, onSample SampleFunc, _ ErrorFunc) error {
	p.mu.Lock()
	p.watching = true
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	go func() {
		defer p.drain(gen)
		for {
			select {
			case <-ctx.Done():
				return
			case sample, ok := <-p.ch:
				if !ok {
					return
				}
				onSample(sample)
			}
		}
	}()
	return nil
}

func (p *PushSource) drain(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// A newer watch owns the channel now; leave it alone.
	if p.gen != gen {
		return
	}

	p.watching = false
	for {
		select {
		case <-p.ch:
		default:
			return
		}
	}
}

// Close stops accepting samples. Idempotent.
func (p *PushSource) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	p.watching = false
}
