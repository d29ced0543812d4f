package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/climaroute/navigator/internal/api/models"
	"github.com/climaroute/navigator/internal/api/response"
	"github.com/climaroute/navigator/internal/geofeed"
	"github.com/climaroute/navigator/internal/trip"
)

// PositionHandler accepts device positions pushed by the hosting UI and
// forwards them to the geolocation feed.
type PositionHandler struct {
	source *geofeed.PushSource
}

// NewPositionHandler creates a new PositionHandler.
func NewPositionHandler(source *geofeed.PushSource) *PositionHandler {
	return &PositionHandler{source: source}
}

// PushPosition handles POST /v1/position.
func (h *PositionHandler) PushPosition(w http.ResponseWriter, r *http.Request) {
	var input models.PositionRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body")
		return
	}

	sample := trip.Position{
		Lat:       input.Lat,
		Lon:       input.Lon,
		SpeedMPS:  input.SpeedMPS,
		Timestamp: time.Now(),
	}
	if !sample.Coordinate().Valid() {
		response.BadRequest(w, r, "coordinates out of range")
		return
	}

	h.source.Push(sample)
	response.NoContent(w, r)
}
