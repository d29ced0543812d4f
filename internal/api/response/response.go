// Package response provides utilities for HTTP response handling.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/climaroute/navigator/internal/api/middleware"
	"github.com/climaroute/navigator/internal/api/models"
	"github.com/climaroute/navigator/internal/session"
)

// JSON writes a JSON response with the given status code. Includes the
// X-Request-Id header for correlation.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter, r *http.Request) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Problem writes a Problem+JSON error response.
func Problem(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest writes a 400 Bad Request error response.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail))
}

// SessionError maps a session operation error onto the problem taxonomy.
func SessionError(w http.ResponseWriter, r *http.Request, err error) {
	traceID := middleware.GetRequestID(r.Context())

	var problem *models.Problem
	switch {
	case errors.Is(err, session.ErrConfirmationRequired):
		problem = models.NewConfirmationRequired(traceID, err.Error())
	case errors.Is(err, session.ErrValidation):
		problem = models.NewValidationError(traceID, err.Error())
	case errors.Is(err, session.ErrNoValidRoute):
		problem = models.NewNotFound(traceID, err.Error())
	case errors.Is(err, session.ErrBackendUnavailable):
		problem = models.NewBadGateway(traceID, err.Error())
	default:
		problem = models.NewInternalError(traceID, "an unexpected error occurred")
	}
	Problem(w, r, problem)
}
