package eventbus

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSBus is a thin adapter over an external NATS broker. NATS subjects
// already speak the "*"/">" wildcard grammar this package's interface
// promises, so translation is close to the identity function, the work
// here is only in shaping nats.Msg into the common Message type and in
// giving subscriptions the same queue-group semantics a durable consumer
// group needs.
type NATSBus struct {
	conn      *nats.Conn
	queueName string // non-empty to subscribe with a queue group (load-balanced consumers)
}

// NATSConfig configures the connection the bus adapts.
type NATSConfig struct {
	URL       string
	QueueName string
}

// NewNATSBus dials url and returns a Bus backed by the connection.
func NewNATSBus(cfg NATSConfig) (*NATSBus, error) {
	conn, err := nats.Connect(cfg.URL, nats.Name("ledgerflow-gl"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", cfg.URL, err)
	}
	return &NATSBus{conn: conn, queueName: cfg.QueueName}, nil
}

// Publish forwards data to the broker. A transport error here is the
// caller's cue to mark the outbox row unpublished and retry next tick.
func (b *NATSBus) Publish(ctx context.Context, subject string, data []byte) error {
	if err := b.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("nats publish to %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers handler on subjectPattern, using a queue-group
// subscription when NATSConfig.QueueName is set so multiple consumer
// processes load-balance deliveries rather than all receiving every
// message.
func (b *NATSBus) Subscribe(ctx context.Context, subjectPattern string, handler Handler) (Subscription, error) {
	cb := func(msg *nats.Msg) {
		m := Message{
			Subject: msg.Subject,
			Data:    msg.Data,
			ReplyTo: msg.Reply,
		}
		if len(msg.Header) > 0 {
			m.Headers = make(map[string]string, len(msg.Header))
			for k := range msg.Header {
				m.Headers[k] = msg.Header.Get(k)
			}
		}
		if err := handler(ctx, m); err != nil {
			// The handler already routed recoverable/non-recoverable
			// classification through the consumer runner; nothing further
			// to do here but let the broker's own redelivery (if any)
			// proceed, since this bus does not ack/nak at the subject
			// subscription layer.
			return
		}
	}

	var sub *nats.Subscription
	var err error
	if b.queueName != "" {
		sub, err = b.conn.QueueSubscribe(subjectPattern, b.queueName, cb)
	} else {
		sub, err = b.conn.Subscribe(subjectPattern, cb)
	}
	if err != nil {
		return nil, fmt.Errorf("nats subscribe to %s: %w", subjectPattern, err)
	}
	return &natsSubscription{sub: sub}, nil
}

// Close drains and closes the underlying connection.
func (b *NATSBus) Close() error {
	b.conn.Close()
	return nil
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}

var _ Bus = (*NATSBus)(nil)
