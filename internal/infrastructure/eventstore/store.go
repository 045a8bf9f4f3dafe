package eventstore

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
)

// RecordedEvent is an event as stored in the log: append-only, never
// mutated or deleted.
type RecordedEvent struct {
	StreamID       string    `json:"stream_id"`
	Version        int64     `json:"version"`         // 1-based position within the stream
	GlobalPosition int64     `json:"global_position"` // 1-based position across all streams
	Type           string    `json:"type"`
	Payload        []byte    `json:"payload"`
	Timestamp      time.Time `json:"timestamp"`
}

// Store is the append-only event log. Streams are named
// "{aggregateKind}-{aggregateId}"; appends are atomic per stream and
// guarded by optimistic concurrency on the expected version.
type Store interface {
	// Append appends events contiguously after expectedVersion and returns
	// the new stream version. Either all events land or none do. A stale
	// expectedVersion yields shared.ErrConcurrencyConflict.
	Append(ctx context.Context, streamID string, expectedVersion int64, events []shared.DomainEvent) (int64, error)

	// Read returns the stream's events with version > fromVersion, in
	// order. Pass 0 to replay the whole stream.
	Read(ctx context.Context, streamID string, fromVersion int64) ([]RecordedEvent, error)

	// ReadAll returns up to limit events across all streams with global
	// position > afterPosition, in commit order. Projectors use this feed
	// together with a checkpoint to resume where they left off.
	ReadAll(ctx context.Context, afterPosition int64, limit int) ([]RecordedEvent, error)
}

// CheckpointStore persists projector positions so a restarted projector
// resumes from the last committed checkpoint.
type CheckpointStore interface {
	// Load returns the saved position for a projection, 0 when absent
	Load(ctx context.Context, projectionName string) (int64, error)

	// Save durably records the projection's position
	Save(ctx context.Context, projectionName string, position int64) error
}
