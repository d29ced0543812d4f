// Package backend provides the client for the ClimaRoute fleet backend:
// trip history records, live telemetry updates, completion, weather
// snapshots and notifications.
package backend

import (
	"encoding/json"
	"errors"
	"strings"
)

// Sentinel errors for backend operations.
var (
	// ErrUnavailable indicates a network failure or backend 5xx; the
	// operation may be retried.
	ErrUnavailable = errors.New("fleet backend unavailable")
	// ErrRejected indicates the backend refused the request (4xx).
	ErrRejected = errors.New("fleet backend rejected the request")
)

// TripStatus values recognized by the backend history record.
type TripStatus string

const (
	StatusInProgress   TripStatus = "InProgress"
	StatusPaused       TripStatus = "Paused"
	StatusCompleted    TripStatus = "Completed"
	StatusNotCompleted TripStatus = "NotCompleted"
	StatusCancelled    TripStatus = "Cancelled"
)

// TripRecord is the history record created when navigation starts.
type TripRecord struct {
	RouteID          string   `json:"routeId,omitempty"`
	Date             string   `json:"date"`
	StartTime        string   `json:"startTime"`
	EndTime          string   `json:"endTime"`
	Origin           string   `json:"origin"`
	Destination      string   `json:"destination"`
	OriginLat        *float64 `json:"originLat,omitempty"`
	OriginLon        *float64 `json:"originLon,omitempty"`
	DestinationLat   *float64 `json:"destinationLat,omitempty"`
	DestinationLon   *float64 `json:"destinationLon,omitempty"`
	Weather          string   `json:"weather"`
	WeatherCondition string   `json:"weatherCondition"`
	Temperature      *float64 `json:"temperature,omitempty"`
	Humidity         *float64 `json:"humidity,omitempty"`
	WindSpeed        *float64 `json:"windSpeed,omitempty"`
	RainProbability  *float64 `json:"rainProbability,omitempty"`
	Distance         string   `json:"distance"`
	DurationMinutes  *float64 `json:"duration,omitempty"`
	Status           string   `json:"status"`
	DriverEmail      string   `json:"driverEmail"`
	CurrentLat       *float64 `json:"currentLat,omitempty"`
	CurrentLon       *float64 `json:"currentLon,omitempty"`
	ETA              string   `json:"eta,omitempty"`
	SpeedKMH         *int     `json:"speed,omitempty"`
	Notes            string   `json:"notes,omitempty"`
}

// TripUpdate carries partial telemetry or status changes for an existing
// record. Nil fields are omitted so the backend keeps prior values.
type TripUpdate struct {
	CurrentLat       *float64 `json:"currentLat,omitempty"`
	CurrentLon       *float64 `json:"currentLon,omitempty"`
	ETA              string   `json:"eta,omitempty"`
	SpeedKMH         *int     `json:"speed,omitempty"`
	Status           string   `json:"status,omitempty"`
	EndTime          string   `json:"endTime,omitempty"`
	DestinationLat   *float64 `json:"destinationLat,omitempty"`
	DestinationLon   *float64 `json:"destinationLon,omitempty"`
	Weather          string   `json:"weather,omitempty"`
	WeatherCondition string   `json:"weatherCondition,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	Humidity         *float64 `json:"humidity,omitempty"`
	WindSpeed        *float64 `json:"windSpeed,omitempty"`
	RainProbability  *float64 `json:"rainProbability,omitempty"`
}

// CompleteRequest is the body for the dedicated completion endpoint, which
// enforces the InProgress -> Completed transition server-side.
type CompleteRequest struct {
	TripID      int64    `json:"tripId"`
	DriverEmail string   `json:"driverEmail,omitempty"`
	EndTime     string   `json:"endTime,omitempty"`
	CurrentLat  *float64 `json:"currentLat,omitempty"`
	CurrentLon  *float64 `json:"currentLon,omitempty"`
}

// looseDocument tolerates the backend's inconsistent field casing.
type looseDocument map[string]json.RawMessage

func (d looseDocument) field(names ...string) (json.RawMessage, bool) {
	for _, name := range names {
		for k, v := range d {
			if strings.EqualFold(k, name) {
				return v, true
			}
		}
	}
	return nil, false
}

func (d looseDocument) float(names ...string) (float64, bool) {
	raw, ok := d.field(names...)
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

func (d looseDocument) str(names ...string) (string, bool) {
	raw, ok := d.field(names...)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (d looseDocument) doc(names ...string) (looseDocument, bool) {
	raw, ok := d.field(names...)
	if !ok {
		return nil, false
	}
	var doc looseDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false
	}
	return doc, true
}
