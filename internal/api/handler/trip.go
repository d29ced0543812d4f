// Package handler provides HTTP handlers for the navigator control API.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/climaroute/navigator/internal/api/models"
	"github.com/climaroute/navigator/internal/api/response"
	"github.com/climaroute/navigator/internal/session"
)

// TripHandler exposes the navigation session operations over HTTP.
type TripHandler struct {
	session *session.Controller
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(s *session.Controller) *TripHandler {
	return &TripHandler{session: s}
}

// SearchRoutes handles POST /v1/routes/search.
func (h *TripHandler) SearchRoutes(w http.ResponseWriter, r *http.Request) {
	var input models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body")
		return
	}

	snapshot, err := h.session.Search(r.Context(), input.Origin, input.Destination)
	if err != nil {
		response.SessionError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, snapshot)
}

// SelectRoute handles POST /v1/routes/select.
func (h *TripHandler) SelectRoute(w http.ResponseWriter, r *http.Request) {
	var input models.SelectRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body")
		return
	}

	snapshot, err := h.session.SelectRoute(r.Context(), input.Index)
	if err != nil {
		response.SessionError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, snapshot)
}

// GetTrip handles GET /v1/trip.
func (h *TripHandler) GetTrip(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.session.Snapshot())
}

// StartTrip handles POST /v1/trip/start.
func (h *TripHandler) StartTrip(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.session.Start(r.Context())
	if err != nil {
		response.SessionError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, snapshot)
}

// PauseTrip handles POST /v1/trip/pause.
func (h *TripHandler) PauseTrip(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.session.Pause(r.Context())
	if err != nil {
		response.SessionError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, snapshot)
}

// ResumeTrip handles POST /v1/trip/resume.
func (h *TripHandler) ResumeTrip(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.session.Resume(r.Context())
	if err != nil {
		response.SessionError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, snapshot)
}

// CompleteTrip handles POST /v1/trip/complete.
func (h *TripHandler) CompleteTrip(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Complete(r.Context()); err != nil {
		response.SessionError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, h.session.Snapshot())
}

// CancelTrip handles POST /v1/trip/cancel.
func (h *TripHandler) CancelTrip(w http.ResponseWriter, r *http.Request) {
	var input models.CancelRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			response.BadRequest(w, r, "invalid JSON body")
			return
		}
	}

	if err := h.session.Cancel(r.Context(), input.Confirmed); err != nil {
		response.SessionError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, h.session.Snapshot())
}
