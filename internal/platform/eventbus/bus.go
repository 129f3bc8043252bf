// Package eventbus implements the Event Bus Abstraction: a single
// publish/subscribe capability with two backends, in-memory and a durable
// broker, sharing one subject-pattern grammar. The core depends only on
// this interface; delivery durability comes from the outbox, not
// from the bus.
package eventbus

import "context"

// Message is what a subscriber receives: subject, payload bytes, and
// optional headers/reply-to, translated into this common shape regardless
// of backend.
type Message struct {
	Subject string
	Data    []byte
	Headers map[string]string
	ReplyTo string
}

// Handler processes one delivered message. A non-nil error does not
// retry at the bus level, retry and DLQ routing happen one layer up,
// in the consumer runner.
type Handler func(ctx context.Context, msg Message) error

// Bus is the polymorphic capability the core depends on: "publish bytes to
// a subject" and "subscribe to a subject pattern". Two implementations,
// no inheritance.
type Bus interface {
	// Publish is fire-and-forget; a returned error means the transport
	// itself failed, not that delivery wasn't attempted.
	Publish(ctx context.Context, subject string, data []byte) error
	// Subscribe registers handler against subjectPattern. Wildcards: "*"
	// matches exactly one token, ">" matches one or more trailing tokens.
	// Subscribe returns a Subscription the caller can use to stop
	// receiving; it does not block.
	Subscribe(ctx context.Context, subjectPattern string, handler Handler) (Subscription, error)
	// Close releases any resources held by the bus (connections, goroutines).
	Close() error
}

// Subscription lets a caller stop receiving messages on a prior Subscribe.
type Subscription interface {
	Unsubscribe() error
}
