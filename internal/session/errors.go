package session

import (
	"errors"

	"github.com/climaroute/navigator/internal/reroute"
)

// Error taxonomy for session operations. None of these are fatal to the
// process; all are reported to the caller for display.
var (
	// ErrValidation indicates bad or missing input, e.g. starting without
	// a selected route. The operation is blocked.
	ErrValidation = errors.New("validation failed")

	// ErrBackendUnavailable indicates a transient network or service
	// failure. Retry-eligible.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrNoValidRoute indicates a search succeeded but produced no usable
	// alternative.
	ErrNoValidRoute = reroute.ErrNoValidRoute

	// ErrConfirmationRequired blocks a destructive operation until the
	// caller signals explicit user consent.
	ErrConfirmationRequired = errors.New("confirmation required")
)
