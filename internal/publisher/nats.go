// Package publisher fans live trip positions out over NATS so dashboards
// and the fleet map can follow vehicles without polling the backend.
package publisher

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/climaroute/navigator/internal/trip"
)

const subjectPrefix = "climaroute.positions"

// NATSPublisher publishes one message per position sample on the subject
// climaroute.positions.<tripRef>.
type NATSPublisher struct {
	nc     *nats.Conn
	logger zerolog.Logger
}

// NewNATSPublisher connects to the given NATS URL.
func NewNATSPublisher(url string, logger zerolog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("climaroute-navigator"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			logger.Warn().Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info().Msg("nats connection closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc, logger: logger}, nil
}

// positionMessage is the wire shape for one sample.
type positionMessage struct {
	TripRef   string    `json:"tripRef"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	SpeedMps  *float64  `json:"speedMps,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PublishPosition publishes the sample for the given trip.
func (p *NATSPublisher) PublishPosition(tripRef string, sample trip.Position) error {
	msg := positionMessage{
		TripRef:   tripRef,
		Lat:       sample.Lat,
		Lon:       sample.Lon,
		SpeedMps:  sample.SpeedMPS,
		Timestamp: sample.Timestamp,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.nc.Publish(subjectPrefix+"."+subjectToken(tripRef), b)
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain() //nolint:errcheck
		p.nc.Close()
	}
}

// subjectToken sanitizes a trip reference for use as a NATS subject token.
func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS tokens cannot contain spaces, '>', '*', or '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
