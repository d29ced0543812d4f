package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/climaroute/navigator/internal/api/response"
	"github.com/climaroute/navigator/internal/session"
)

// EventsHandler streams session events over Server-Sent Events so the
// hosting UI can show reroute and lifecycle toasts without polling.
type EventsHandler struct {
	session *session.Controller
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(s *session.Controller) *EventsHandler {
	return &EventsHandler{session: s}
}

// StreamEvents handles GET /v1/events.
func (h *EventsHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		response.BadRequest(w, r, "streaming not supported")
		return
	}

	events, unsubscribe := h.session.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, payload)
			flusher.Flush()
		}
	}
}
