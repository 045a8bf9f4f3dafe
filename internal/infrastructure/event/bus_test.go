package event

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// panickingHandler panics on every delivery
type panickingHandler struct{}

func (h *panickingHandler) EventTypes() []string {
	return []string{"TestEvent"}
}

func (h *panickingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	panic("allocation map corrupted")
}

func TestInMemoryEventBus_DeliversToSubscribers(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	inner := &countingHandler{}
	bus.Subscribe(inner)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent(), newTestEvent()))

	assert.Equal(t, int64(2), inner.calls.Load())
	assert.Equal(t, int64(2), bus.Metrics().EventsPublished.Load())
	assert.Equal(t, int64(0), bus.Metrics().HandlerErrors.Load())
}

func TestInMemoryEventBus_HandlerFailureDoesNotFailPublish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	failing := &countingHandler{failures: 1, err: shared.ErrConcurrencyConflict}
	healthy := &countingHandler{}
	bus.Subscribe(failing)
	bus.Subscribe(healthy)

	// The append already committed when the bus publishes, so a failed
	// handler must not surface as a save failure
	require.NoError(t, bus.Publish(context.Background(), newTestEvent()))

	assert.Equal(t, int64(1), healthy.calls.Load())
	assert.Equal(t, int64(1), bus.Metrics().HandlerErrors.Load())
}

func TestInMemoryEventBus_PanicIsContained(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	after := &countingHandler{}
	bus.Subscribe(&panickingHandler{})
	bus.Subscribe(after)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent()))

	// The panic is converted to a counted error and later handlers still run
	assert.Equal(t, int64(1), bus.Metrics().HandlerErrors.Load())
	assert.Equal(t, int64(1), after.calls.Load())
}

func TestInMemoryEventBus_NilHandlerIgnored(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(nil, "TestEvent")

	require.NoError(t, bus.Publish(context.Background(), newTestEvent()))
	assert.Equal(t, int64(0), bus.Metrics().HandlerErrors.Load())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	inner := &countingHandler{}
	bus.Subscribe(inner)
	bus.Unsubscribe(inner)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent()))
	assert.Equal(t, int64(0), inner.calls.Load())
}
