package core

import "context"

// RealtimeEvent is a message published on a topic of the realtime Broker.
type RealtimeEvent struct {
	Topic   string      `json:"topic"`
	Kind    string      `json:"kind"` // e.g. "chat:message", "event:updated"
	Payload interface{} `json:"payload"`
}

// Broker is the publish/subscribe transport used for chat and live event updates.
// The in-process implementation lives in services/realtime; a hosted transport
// can be swapped in behind the same interface.
type Broker interface {
	Publish(ctx context.Context, evt RealtimeEvent) error
	// Subscribe returns a channel of events on topic and a cancel func.
	// The channel is closed after cancellation; slow consumers may drop events.
	Subscribe(topic string) (<-chan RealtimeEvent, func())
}
