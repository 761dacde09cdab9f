package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBroker_PublishDeliversToSubscriber(t *testing.T) {
	b := NewBroker[string]()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Subscribe(ctx)
	b.Publish(CreatedEvent, "hello")

	select {
	case ev := <-ch:
		require.Equal(t, CreatedEvent, ev.Type)
		require.Equal(t, "hello", ev.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroker_FanOutToMultipleSubscribers(t *testing.T) {
	b := NewBroker[int]()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch1 := b.Subscribe(ctx)
	ch2 := b.Subscribe(ctx)
	require.Equal(t, 2, b.SubscriberCount())

	b.Publish(UpdatedEvent, 42)

	for _, ch := range []<-chan Event[int]{ch1, ch2} {
		select {
		case ev := <-ch:
			require.Equal(t, 42, ev.Payload)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBroker_ContextCancelClosesSubscription(t *testing.T) {
	b := NewBroker[string]()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx)
	cancel()

	// Channel should be closed once cleanup runs
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return b.SubscriberCount() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestBroker_PublishAfterCloseIsNoop(t *testing.T) {
	b := NewBroker[string]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Subscribe(ctx)
	b.Close()

	// Must not panic
	b.Publish(CreatedEvent, "late")

	_, ok := <-ch
	require.False(t, ok, "subscriber channel should be closed")
}

func TestBroker_SubscribeAfterCloseReturnsClosedChannel(t *testing.T) {
	b := NewBroker[string]()
	b.Close()

	ch := b.Subscribe(context.Background())
	_, ok := <-ch
	require.False(t, ok)
}

func TestBroker_FullSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBrokerWithBuffer[int](1)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Subscribe(ctx)
	b.Publish(CreatedEvent, 1)
	b.Publish(CreatedEvent, 2) // dropped, buffer is full

	ev := <-ch
	require.Equal(t, 1, ev.Payload)

	select {
	case <-ch:
		t.Fatal("second event should have been dropped")
	case <-time.After(50 * time.Millisecond):
	}
}
