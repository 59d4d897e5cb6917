package event

import (
	"context"
	"log"
	"sync"
)

// Handler processes a published event.
type Handler func(ctx context.Context, event Event) error

// Bus is the event bus interface. Publishing is fire-and-forget: handler
// errors are logged, never propagated, so a slow or broken subscriber cannot
// fail a workflow.
type Bus interface {
	// Publish publishes an event to all subscribed handlers.
	Publish(ctx context.Context, event Event) error
	// Subscribe subscribes a handler to a specific event type.
	Subscribe(t Type, handler Handler) error
	// SubscribeAll subscribes a handler to all events.
	SubscribeAll(handler Handler) error
}

// Logger is the minimal logging interface used for handler failures.
type Logger interface {
	Printf(format string, v ...any)
}

type defaultLogger struct{}

func (l *defaultLogger) Printf(format string, v ...any) {
	log.Printf(format, v...)
}

// MemoryBus is an in-process implementation of Bus.
type MemoryBus struct {
	mu          sync.RWMutex
	handlers    map[Type][]Handler
	allHandlers []Handler
	logger      Logger
}

// MemoryBusOption configures a MemoryBus.
type MemoryBusOption func(*MemoryBus)

// WithLogger sets a custom logger for the bus.
func WithLogger(logger Logger) MemoryBusOption {
	return func(b *MemoryBus) {
		b.logger = logger
	}
}

// NewMemoryBus creates a new in-memory event bus.
func NewMemoryBus(opts ...MemoryBusOption) *MemoryBus {
	bus := &MemoryBus{
		handlers:    make(map[Type][]Handler),
		allHandlers: make([]Handler, 0),
		logger:      &defaultLogger{},
	}
	for _, opt := range opts {
		opt(bus)
	}
	return bus
}

// Publish publishes an event to all subscribed handlers. Handler errors are
// logged but never block or fail the publisher.
func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	// Copy handlers to avoid holding the lock during execution
	typeHandlers := make([]Handler, len(b.handlers[event.Type]))
	copy(typeHandlers, b.handlers[event.Type])
	allHandlers := make([]Handler, len(b.allHandlers))
	copy(allHandlers, b.allHandlers)
	b.mu.RUnlock()

	for _, handler := range typeHandlers {
		b.executeHandler(ctx, handler, event)
	}
	for _, handler := range allHandlers {
		b.executeHandler(ctx, handler, event)
	}
	return nil
}

// executeHandler executes a single handler, containing panics and errors.
func (b *MemoryBus) executeHandler(ctx context.Context, handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Printf("[EventBus] handler panic for event %s: %v", event.Type, r)
		}
	}()

	if err := handler(ctx, event); err != nil {
		b.logger.Printf("[EventBus] handler error for event %s (tenant=%s): %v", event.Type, event.TenantID, err)
	}
}

// Subscribe subscribes a handler to a specific event type.
func (b *MemoryBus) Subscribe(t Type, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], handler)
	return nil
}

// SubscribeAll subscribes a handler to all events.
func (b *MemoryBus) SubscribeAll(handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allHandlers = append(b.allHandlers, handler)
	return nil
}

// Unsubscribe removes all handlers for a specific event type.
func (b *MemoryBus) Unsubscribe(t Type) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, t)
}

// HandlerCount returns the number of handlers for a specific event type.
func (b *MemoryBus) HandlerCount(t Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[t])
}

// NoopBus is a no-op bus for tests or when events are disabled.
type NoopBus struct{}

// NewNoopBus creates a new no-op event bus.
func NewNoopBus() *NoopBus {
	return &NoopBus{}
}

// Publish does nothing.
func (b *NoopBus) Publish(_ context.Context, _ Event) error {
	return nil
}

// Subscribe does nothing.
func (b *NoopBus) Subscribe(_ Type, _ Handler) error {
	return nil
}

// SubscribeAll does nothing.
func (b *NoopBus) SubscribeAll(_ Handler) error {
	return nil
}
