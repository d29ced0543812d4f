package session

import (
	"sync"
	"time"
)

// EventKind classifies session events for the UI toast layer.
type EventKind string

const (
	EventTripStarted   EventKind = "trip_started"
	EventTripPaused    EventKind = "trip_paused"
	EventTripResumed   EventKind = "trip_resumed"
	EventTripCompleted EventKind = "trip_completed"
	EventTripCancelled EventKind = "trip_cancelled"
	EventRerouted      EventKind = "rerouted"
	EventNoValidRoute  EventKind = "no_valid_route"
	EventError         EventKind = "error"
)

// Event is a human-readable session notification.
type Event struct {
	Kind    EventKind `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// eventBus fans events out to subscribers. Sends never block: a subscriber
// that stops draining loses events rather than stalling the session loop.
type eventBus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[int]chan Event)}
}

// subscribe returns a buffered event channel and an unsubscribe func.
func (b *eventBus) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, 16)

	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

func (b *eventBus) publish(kind EventKind, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	evt := Event{Kind: kind, Message: message, At: time.Now()}
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (b *eventBus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
