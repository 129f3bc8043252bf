package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryBus_FanOutToEveryMatchingSubscriber(t *testing.T) {
	bus := NewInMemoryBus(nil)
	defer bus.Close()

	var mu sync.Mutex
	var gotA, gotB []Message
	received := make(chan struct{}, 2)

	_, err := bus.Subscribe(context.Background(), "gl.events.>", func(ctx context.Context, msg Message) error {
		mu.Lock()
		gotA = append(gotA, msg)
		mu.Unlock()
		received <- struct{}{}
		return nil
	})
	require.NoError(t, err)

	_, err = bus.Subscribe(context.Background(), "gl.events.posting.*", func(ctx context.Context, msg Message) error {
		mu.Lock()
		gotB = append(gotB, msg)
		mu.Unlock()
		received <- struct{}{}
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), "gl.events.posting.requested", []byte(`{"x":1}`)))

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fan-out delivery")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, gotA, 1)
	require.Len(t, gotB, 1)
	assert.Equal(t, "gl.events.posting.requested", gotA[0].Subject)
}

func TestInMemoryBus_NonMatchingSubscriberNeverCalled(t *testing.T) {
	bus := NewInMemoryBus(nil)
	defer bus.Close()

	called := make(chan struct{}, 1)
	_, err := bus.Subscribe(context.Background(), "ar.events.>", func(ctx context.Context, msg Message) error {
		called <- struct{}{}
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), "gl.events.posting.requested", []byte(`{}`)))

	select {
	case <-called:
		t.Fatal("subscriber on a non-matching pattern received the message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInMemoryBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewInMemoryBus(nil)
	defer bus.Close()

	called := make(chan struct{}, 4)
	sub, err := bus.Subscribe(context.Background(), "gl.events.>", func(ctx context.Context, msg Message) error {
		called <- struct{}{}
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, bus.Publish(context.Background(), "gl.events.posting.requested", []byte(`{}`)))

	select {
	case <-called:
		t.Fatal("unsubscribed handler still received a message")
	case <-time.After(50 * time.Millisecond):
	}
}
