package eventbus

import (
	"context"
	"log/slog"
	"sync"
)

// subscriberBufferSize bounds each subscriber's receive channel. A
// publisher never blocks on a slow subscriber beyond this buffer; once
// full, further messages to that subscriber are dropped and logged, a
// documented, deliberately lossy behavior under back-pressure.
const subscriberBufferSize = 256

// InMemoryBus is a process-wide fan-out bus: every Publish delivers a copy
// to every receiver whose pattern matches, each receiver running its own
// goroutine reading off an independently buffered channel. Its only shared
// state is the subscriber registry, guarded by a single mutex taken only
// on subscribe/unsubscribe.
type InMemoryBus struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	logger *slog.Logger
}

type subscriber struct {
	id      int
	pattern string
	ch      chan Message
	done    chan struct{}
}

// NewInMemoryBus constructs a bus with no subscribers.
func NewInMemoryBus(logger *slog.Logger) *InMemoryBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryBus{
		subs:   make(map[int]*subscriber),
		logger: logger,
	}
}

// Publish delivers data to every subscriber whose pattern matches subject.
// It never returns a transport error: in-process delivery cannot fail at
// the transport layer, only at the per-subscriber buffer.
func (b *InMemoryBus) Publish(ctx context.Context, subject string, data []byte) error {
	b.mu.Lock()
	targets := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if MatchSubject(s.pattern, subject) {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()

	msg := Message{Subject: subject, Data: data}
	for _, s := range targets {
		select {
		case s.ch <- msg:
		default:
			b.logger.WarnContext(ctx, "in-memory bus dropped message, subscriber buffer full",
				slog.String("subject", subject), slog.String("pattern", s.pattern))
		}
	}
	return nil
}

// Subscribe registers handler against subjectPattern and starts a goroutine
// that dispatches every matching message to it until the subscription is
// cancelled or the context is done.
func (b *InMemoryBus) Subscribe(ctx context.Context, subjectPattern string, handler Handler) (Subscription, error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	s := &subscriber{
		id:      id,
		pattern: subjectPattern,
		ch:      make(chan Message, subscriberBufferSize),
		done:    make(chan struct{}),
	}
	b.subs[id] = s
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case msg := <-s.ch:
				if err := handler(ctx, msg); err != nil {
					b.logger.ErrorContext(ctx, "in-memory bus handler returned error",
						slog.String("subject", msg.Subject), slog.Any("error", err))
				}
			}
		}
	}()

	return &inMemorySubscription{bus: b, id: id}, nil
}

// Close stops all subscriber goroutines and drops the registry.
func (b *InMemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		close(s.done)
	}
	b.subs = make(map[int]*subscriber)
	return nil
}

type inMemorySubscription struct {
	bus *InMemoryBus
	id  int
}

func (s *inMemorySubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if sub, ok := s.bus.subs[s.id]; ok {
		close(sub.done)
		delete(s.bus.subs, s.id)
	}
	return nil
}

var _ Bus = (*InMemoryBus)(nil)
