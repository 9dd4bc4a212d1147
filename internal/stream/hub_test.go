package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clamm-options/internal/models"
)

func waitFor(t *testing.T, ch <-chan models.Event) models.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return models.Event{}
	}
}

func TestHubFanout(t *testing.T) {
	hub := NewHub()
	hub.Start(context.Background())
	defer hub.Stop()

	mints := hub.Subscribe(models.EventMint)
	settles := hub.Subscribe(models.EventSettle)

	hub.Publish(models.Event{Kind: models.EventMint, OptionID: 7, Caller: "trader"})

	got := waitFor(t, mints)
	assert.Equal(t, models.OptionID(7), got.OptionID)
	assert.Equal(t, "trader", got.Caller)

	// The settle subscriber sees nothing.
	select {
	case ev := <-settles:
		t.Fatalf("unexpected event %v", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubMultipleSubscribersSameKind(t *testing.T) {
	hub := NewHub()
	hub.Start(context.Background())
	defer hub.Stop()

	a := hub.SubscribeWithID(models.EventMint, "a")
	b := hub.SubscribeWithID(models.EventMint, "b")
	require.Equal(t, 2, hub.GetSubscriberCount(models.EventMint))

	hub.Publish(models.Event{Kind: models.EventMint, OptionID: 1})
	assert.Equal(t, models.OptionID(1), waitFor(t, a).OptionID)
	assert.Equal(t, models.OptionID(1), waitFor(t, b).OptionID)
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe(models.EventExercise)
	require.Equal(t, 1, hub.GetSubscriberCount(models.EventExercise))

	hub.Unsubscribe(models.EventExercise, ch)
	assert.Equal(t, 0, hub.GetSubscriberCount(models.EventExercise))

	// The channel is closed.
	_, open := <-ch
	assert.False(t, open)
}

func TestHubSlowSubscriberDrops(t *testing.T) {
	hub := NewHubWithConfig(HubConfig{BufferSize: 10, SubscriberBufferSize: 1})
	hub.Start(context.Background())
	defer hub.Stop()

	ch := hub.Subscribe(models.EventMint)

	hub.Publish(models.Event{Kind: models.EventMint, OptionID: 1})
	hub.Publish(models.Event{Kind: models.EventMint, OptionID: 2})
	hub.Publish(models.Event{Kind: models.EventMint, OptionID: 3})

	// Only the first fits the buffer; the rest are dropped, never
	// delivered out of order.
	first := waitFor(t, ch)
	assert.Equal(t, models.OptionID(1), first.OptionID)

	deadline := time.After(2 * time.Second)
	for {
		m := hub.GetMetrics()
		if m.EventsReceived == 3 && m.EventsDropped >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("metrics never settled: %+v", m)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHubConsumerSeesEveryKindInOrder(t *testing.T) {
	hub := NewHub()

	var seen []models.EventKind
	done := make(chan struct{})
	hub.RegisterConsumer(ConsumerFunc(func(ev models.Event) {
		seen = append(seen, ev.Kind)
		if len(seen) == 3 {
			close(done)
		}
	}))

	hub.Start(context.Background())
	defer hub.Stop()

	hub.Publish(models.Event{Kind: models.EventMint})
	hub.Publish(models.Event{Kind: models.EventExercise})
	hub.Publish(models.Event{Kind: models.EventSettle})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer never saw all events")
	}
	// Consumers run synchronously in the fan-out loop, so order holds.
	assert.Equal(t, []models.EventKind{models.EventMint, models.EventExercise, models.EventSettle}, seen)
}

func TestHubStartIdempotent(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()
	hub.Start(ctx)
	hub.Start(ctx)
	assert.True(t, hub.IsStarted())
	hub.Stop()
	assert.False(t, hub.IsStarted())
}
