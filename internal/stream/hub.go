// Package stream distributes engine events to subscribers. The hub is
// an observation side channel: no engine invariant depends on delivery.
package stream

import (
	"context"
	"sync"
	"time"

	"clamm-options/internal/models"
)

// HubConfig holds configuration for the event hub.
type HubConfig struct {
	// BufferSize is the size of the internal event channel buffer.
	BufferSize int
	// SubscriberBufferSize is the size of each subscriber's channel buffer.
	SubscriberBufferSize int
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		BufferSize:           1000,
		SubscriberBufferSize: 100,
	}
}

// Hub fans engine events out to multiple subscribers via channels.
// Sends are non-blocking; slow consumers drop events rather than stall
// the publisher.
type Hub struct {
	config      HubConfig
	mu          sync.RWMutex
	subscribers map[models.EventKind][]*Subscriber
	eventChan   chan models.Event
	done        chan struct{}
	started     bool
	consumers   []Consumer
	consumersMu sync.RWMutex

	metricsMu      sync.RWMutex
	eventsReceived uint64
	eventsFanned   uint64
	eventsDropped  uint64
}

// Subscriber is one event channel with metadata.
type Subscriber struct {
	ID           string
	Channel      chan models.Event
	DroppedCount int
	CreatedAt    time.Time
}

// NewHub creates a new hub with default configuration.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultHubConfig())
}

// NewHubWithConfig creates a new hub with custom configuration.
func NewHubWithConfig(config HubConfig) *Hub {
	return &Hub{
		config:      config,
		subscribers: make(map[models.EventKind][]*Subscriber),
		eventChan:   make(chan models.Event, config.BufferSize),
		done:        make(chan struct{}),
	}
}

// Start begins the hub's distribution loop.
func (h *Hub) Start(ctx context.Context) {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return
	}
	h.started = true
	h.mu.Unlock()

	go h.fanoutLoop(ctx)
}

func (h *Hub) fanoutLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case ev := <-h.eventChan:
			h.metricsMu.Lock()
			h.eventsReceived++
			h.metricsMu.Unlock()

			h.fanout(ev)
			h.notifyConsumers(ev)
		}
	}
}

// Stop stops the hub and closes all subscriber channels.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return
	}
	close(h.done)
	h.started = false

	for kind, subs := range h.subscribers {
		for _, sub := range subs {
			close(sub.Channel)
		}
		delete(h.subscribers, kind)
	}
}

// Subscribe adds a subscriber for one event kind and returns its channel.
func (h *Hub) Subscribe(kind models.EventKind) <-chan models.Event {
	return h.SubscribeWithID(kind, "")
}

// SubscribeWithID adds a subscriber with a specific ID.
func (h *Hub) SubscribeWithID(kind models.EventKind, id string) <-chan models.Event {
	ch := make(chan models.Event, h.config.SubscriberBufferSize)
	sub := &Subscriber{
		ID:        id,
		Channel:   ch,
		CreatedAt: time.Now(),
	}

	h.mu.Lock()
	h.subscribers[kind] = append(h.subscribers[kind], sub)
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel for an event kind.
func (h *Hub) Unsubscribe(kind models.EventKind, ch <-chan models.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[kind]
	for i, sub := range subs {
		if sub.Channel == ch {
			close(sub.Channel)
			h.subscribers[kind] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(h.subscribers[kind]) == 0 {
		delete(h.subscribers, kind)
	}
}

// Publish hands an event to the hub for distribution. Non-blocking: if
// the internal buffer is full the event is dropped and counted.
func (h *Hub) Publish(ev models.Event) {
	select {
	case h.eventChan <- ev:
	default:
		h.metricsMu.Lock()
		h.eventsDropped++
		h.metricsMu.Unlock()
	}
}

func (h *Hub) fanout(ev models.Event) {
	h.mu.RLock()
	subs := h.subscribers[ev.Kind]
	h.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.Channel <- ev:
			h.metricsMu.Lock()
			h.eventsFanned++
			h.metricsMu.Unlock()
		default:
			sub.DroppedCount++
			h.metricsMu.Lock()
			h.eventsDropped++
			h.metricsMu.Unlock()
		}
	}
}

// GetSubscriberCount returns the number of subscribers for a kind.
func (h *Hub) GetSubscriberCount(kind models.EventKind) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[kind])
}

// IsStarted returns whether the hub is running.
func (h *Hub) IsStarted() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}

// HubMetrics contains hub counters.
type HubMetrics struct {
	EventsReceived uint64
	EventsFanned   uint64
	EventsDropped  uint64
}

// GetMetrics returns hub metrics.
func (h *Hub) GetMetrics() HubMetrics {
	h.metricsMu.RLock()
	defer h.metricsMu.RUnlock()
	return HubMetrics{
		EventsReceived: h.eventsReceived,
		EventsFanned:   h.eventsFanned,
		EventsDropped:  h.eventsDropped,
	}
}

// Consumer processes every event regardless of kind. Consumers are
// invoked synchronously in the fan-out loop so ordered sinks (such as
// the persistent journal) see events in publish order.
type Consumer interface {
	OnEvent(ev models.Event)
}

// RegisterConsumer adds a consumer.
func (h *Hub) RegisterConsumer(consumer Consumer) {
	h.consumersMu.Lock()
	h.consumers = append(h.consumers, consumer)
	h.consumersMu.Unlock()
}

// UnregisterConsumer removes a consumer.
func (h *Hub) UnregisterConsumer(consumer Consumer) {
	h.consumersMu.Lock()
	defer h.consumersMu.Unlock()
	for i, c := range h.consumers {
		if c == consumer {
			h.consumers = append(h.consumers[:i], h.consumers[i+1:]...)
			break
		}
	}
}

func (h *Hub) notifyConsumers(ev models.Event) {
	h.consumersMu.RLock()
	consumers := make([]Consumer, len(h.consumers))
	copy(consumers, h.consumers)
	h.consumersMu.RUnlock()

	for _, consumer := range consumers {
		consumer.OnEvent(ev)
	}
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(models.Event)

// OnEvent implements Consumer.
func (f ConsumerFunc) OnEvent(ev models.Event) { f(ev) }
