// Package events provides the change notification bus. Schema and
// field mutations publish here; the dynamic API surface subscribes to
// "reload" and regenerates itself before the next request is served.
package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Reload is emitted after any committed schema or field mutation.
const Reload = "reload"

// Event represents a published event.
type Event struct {
	// Name is the event name (e.g., "reload", "document.created").
	Name string

	// Data contains the event payload.
	Data map[string]any
}

// Handler is a function that processes an event.
type Handler func(ctx context.Context, event Event) error

// Subscription identifies a registered handler so it can be removed.
type Subscription struct {
	event string
	id    uint64
}

// Bus is a process-wide publish/subscribe channel. Emit and
// subscription management are safe to call concurrently at any time.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]entry
	logger   zerolog.Logger
}

type entry struct {
	id      uint64
	handler Handler
}

// NewBus creates a new event bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]entry),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event. Handlers run in
// registration order; no further ordering is guaranteed.
func (b *Bus) Subscribe(event string, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.handlers[event] = append(b.handlers[event], entry{id: b.nextID, handler: handler})
	return Subscription{event: event, id: b.nextID}
}

// Unsubscribe removes a previously registered handler. Removing an
// already-removed subscription is a no-op.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.handlers[sub.event]
	for i, e := range entries {
		if e.id == sub.id {
			b.handlers[sub.event] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// Emit publishes an event to all registered handlers synchronously, in
// registration order. A handler error is logged and publishing
// continues with the remaining handlers.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	entries := make([]entry, len(b.handlers[event.Name]))
	copy(entries, b.handlers[event.Name])
	b.mu.RUnlock()

	b.logger.Debug().
		Str("event", event.Name).
		Int("handlers", len(entries)).
		Msg("event emitted")

	for _, e := range entries {
		if err := e.handler(ctx, event); err != nil {
			b.logger.Error().
				Err(err).
				Str("event", event.Name).
				Msg("event handler error")
		}
	}
}

// EmitAsync publishes an event without blocking the caller.
func (b *Bus) EmitAsync(ctx context.Context, event Event) {
	go b.Emit(ctx, event)
}

// HasSubscribers checks if any handlers are registered for an event.
func (b *Bus) HasSubscribers(event string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[event]) > 0
}
