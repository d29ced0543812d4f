// Package statestore provides durable key-value persistence for the
// navigation session. The store survives process restarts and is the local
// source of truth for the in-flight trip; the backend remains the system of
// record for completed history.
package statestore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/climaroute/navigator/internal/trip"
)

// ErrKeyNotFound is returned by Get when the key has never been set.
var ErrKeyNotFound = errors.New("key not found")

// Key namespaces. Trip data lives under its own prefix so ClearTripData
// never touches unrelated application state.
const (
	TripKeyPrefix = "trip."
	tripStateKey  = TripKeyPrefix + "state"
)

// Store is the raw key-value persistence contract. Implementations are
// synchronous: a returned Set has been durably recorded. Callers are
// single-threaded per key (the session loop is the only writer).
type Store interface {
	// Get returns the stored value, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set persists the value immediately. Safe to call at high frequency.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteAll removes every key with the given prefix in one operation.
	DeleteAll(ctx context.Context, prefix string) error
}

// TripStore is the typed wrapper the session controller uses: it loads and
// saves the whole trip state document and clears it atomically.
type TripStore struct {
	store  Store
	logger zerolog.Logger
}

// NewTripStore creates a typed trip state store over the given backend.
func NewTripStore(store Store, logger zerolog.Logger) *TripStore {
	return &TripStore{store: store, logger: logger}
}

// Load returns the persisted trip state. Missing or unparseable state falls
// back to an empty state rather than failing: stored data we cannot read is
// treated as absent.
func (t *TripStore) Load(ctx context.Context) *trip.State {
	raw, err := t.store.Get(ctx, tripStateKey)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			t.logger.Warn().Err(err).Msg("failed to read persisted trip state, starting empty")
		}
		return &trip.State{}
	}

	var state trip.State
	if err := json.Unmarshal(raw, &state); err != nil {
		t.logger.Warn().Err(err).Msg("persisted trip state corrupt, starting empty")
		return &trip.State{}
	}
	return &state
}

// Save persists the full trip state.
func (t *TripStore) Save(ctx context.Context, state *trip.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return t.store.Set(ctx, tripStateKey, raw)
}

// ClearTripData removes every trip-related key. Keys outside the trip
// namespace (auth, settings) are untouched.
func (t *TripStore) ClearTripData(ctx context.Context) error {
	return t.store.DeleteAll(ctx, TripKeyPrefix)
}
