package models

// SearchRequest is the body for POST /v1/routes/search.
type SearchRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// SelectRouteRequest is the body for POST /v1/routes/select.
type SelectRouteRequest struct {
	Index int `json:"index"`
}

// CancelRequest is the body for POST /v1/trip/cancel. Confirmed must be
// true; the first call without it returns a confirmation-required problem.
type CancelRequest struct {
	Confirmed bool `json:"confirmed"`
}

// PositionRequest is the body for POST /v1/position, pushed by the hosting
// UI at device sample cadence.
type PositionRequest struct {
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	SpeedMPS *float64 `json:"speedMps,omitempty"`
}

// Health is the liveness response for GET /v1/ops/health.
type Health struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	BuildTime string            `json:"buildTime,omitempty"`
	Breakers  map[string]string `json:"breakers,omitempty"`
}
