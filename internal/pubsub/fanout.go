package pubsub

import (
	"github.com/rs/zerolog"

	"streamgen/internal/engine"
)

// Multi delivers each event to every publisher in order.
type Multi []engine.EventPublisher

func (m Multi) Publish(e engine.Event) {
	for _, p := range m {
		p.Publish(e)
	}
}

// LogPublisher writes events to a zerolog logger at debug level.
type LogPublisher struct{ Log zerolog.Logger }

func (p LogPublisher) Publish(e engine.Event) {
	p.Log.Debug().Str("event", e.Name).Str("request_id", e.RequestID).Fields(e.Fields).Msg("lifecycle")
}
