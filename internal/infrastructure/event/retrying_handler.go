package event

import (
	"context"
	"sync"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// Default retry configuration for reactor-driven commands
const (
	DefaultMaxAttempts = 5
	DefaultBaseBackoff = 100 * time.Millisecond
)

// DeadLetter records an event whose handler exhausted its retries.
// The triggering event itself stays intact in the log for manual replay;
// this record exists so operations can see what went unprocessed.
type DeadLetter struct {
	Event     shared.DomainEvent
	Handler   string
	Attempts  int
	LastError string
	FailedAt  time.Time
}

// RetryConfig holds retry behaviour for a reactor handler
type RetryConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: DefaultMaxAttempts,
		BaseBackoff: DefaultBaseBackoff,
	}
}

// RetryingHandler wraps an EventHandler with bounded retries and
// exponential backoff. Cross-aggregate reactor commands can fail
// transiently (typically on a concurrency conflict); the obligation must
// never be silently dropped, so exhaustion is surfaced as an operational
// alert and a dead-letter record.
type RetryingHandler struct {
	handler shared.EventHandler
	config  RetryConfig
	logger  *zap.Logger

	mu          sync.Mutex
	deadLetters []DeadLetter
}

// NewRetryingHandler creates a new retrying handler wrapper
func NewRetryingHandler(handler shared.EventHandler, config RetryConfig, logger *zap.Logger) *RetryingHandler {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.BaseBackoff <= 0 {
		config.BaseBackoff = DefaultBaseBackoff
	}
	return &RetryingHandler{
		handler: handler,
		config:  config,
		logger:  logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *RetryingHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle processes the event, retrying with exponential backoff:
// base, 2*base, 4*base, ...
func (h *RetryingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var lastErr error
	for attempt := 1; attempt <= h.config.MaxAttempts; attempt++ {
		lastErr = h.handler.Handle(ctx, event)
		if lastErr == nil {
			return nil
		}

		if attempt < h.config.MaxAttempts {
			backoff := h.config.BaseBackoff * time.Duration(1<<uint(attempt-1))
			h.logger.Warn("reactor command failed, retrying",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	h.recordDeadLetter(event, lastErr)
	return lastErr
}

// recordDeadLetter raises the operational alert for an exhausted event
func (h *RetryingHandler) recordDeadLetter(event shared.DomainEvent, err error) {
	h.mu.Lock()
	h.deadLetters = append(h.deadLetters, DeadLetter{
		Event:     event,
		Attempts:  h.config.MaxAttempts,
		LastError: err.Error(),
		FailedAt:  time.Now(),
	})
	h.mu.Unlock()

	h.logger.Error("reactor retries exhausted, event dead-lettered",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.Int("attempts", h.config.MaxAttempts),
		zap.Error(err),
	)
}

// DeadLetters returns a snapshot of all dead-lettered events
func (h *RetryingHandler) DeadLetters() []DeadLetter {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]DeadLetter, len(h.deadLetters))
	copy(out, h.deadLetters)
	return out
}

// Ensure RetryingHandler implements EventHandler
var _ shared.EventHandler = (*RetryingHandler)(nil)
