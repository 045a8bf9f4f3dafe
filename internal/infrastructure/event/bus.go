package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// BusMetrics tracks event delivery for the in-memory bus
type BusMetrics struct {
	// EventsPublished is the total number of events published
	EventsPublished atomic.Int64

	// HandlerErrors is the total number of handler failures, panics included
	HandlerErrors atomic.Int64
}

// InMemoryEventBus implements EventBus with in-memory pub/sub.
// Publication is synchronous: repositories publish only after the
// event-store append has committed, so handlers always observe durable
// events in stream order. Handler failures are logged and counted but
// never fail the publish; a failed reactor must not roll back a commit
// that already happened.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	metrics  *BusMetrics
	running  atomic.Bool
	wg       sync.WaitGroup
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger,
		metrics:  &BusMetrics{},
	}
}

// Publish publishes events to all registered handlers synchronously
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, event := range events {
		b.metrics.EventsPublished.Add(1)
		handlers := b.registry.GetHandlers(event.EventType())

		for _, handler := range handlers {
			if err := b.dispatchToHandler(ctx, handler, event); err != nil {
				// Log and count, but continue with the other handlers
				b.metrics.HandlerErrors.Add(1)
				b.logger.Error("handler failed to process event",
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Subscribe registers a handler for specific event types
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if handler == nil {
		b.logger.Warn("ignoring nil handler subscription",
			zap.Strings("event_types", eventTypes),
		)
		return
	}

	// If handler specifies its own event types, use those
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed",
		zap.Strings("event_types", eventTypes),
	)
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
	b.logger.Debug("handler unsubscribed")
}

// Metrics returns the bus delivery counters
func (b *InMemoryEventBus) Metrics() *BusMetrics {
	return b.metrics
}

// Start starts the event bus
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.running.Store(true)
	b.logger.Info("event bus started")
	return nil
}

// Stop stops the event bus gracefully
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.running.Store(false)
	b.wg.Wait()
	b.logger.Info("event bus stopped")
	return nil
}

// dispatchToHandler dispatches an event to one handler, converting a
// panic into an error so one misbehaving handler cannot take down the
// publishing goroutine
func (b *InMemoryEventBus) dispatchToHandler(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
			b.logger.Error("handler panicked",
				zap.String("event_type", event.EventType()),
				zap.Any("panic", r),
			)
		}
	}()

	return handler.Handle(ctx, event)
}

// Ensure InMemoryEventBus implements EventBus
var _ shared.EventBus = (*InMemoryEventBus)(nil)
