package pubsub

import "context"

// Message is the unit of work passed through the async queue.
type Message struct {
	// Topic identifies the queue the message belongs to (e.g. "presence.recompute").
	Topic string
	// Payload contains the raw job data, typically JSON.
	Payload []byte
	// Metadata carries arbitrary key-value context (e.g. timestamps).
	Metadata map[string]string
}

// Handler processes a received message. A non-nil error nacks the message so
// the queue redelivers it (at-least-once semantics).
type Handler func(ctx context.Context, msg Message) error

// Publisher is the contract for enqueueing work.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber is the contract for consuming work. Subscribe registers the
// handler and returns immediately; consumption runs until the context is
// canceled or the subscriber is closed.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
