package eventstore

import (
	"context"
	"sync"

	"github.com/erp/ledger/internal/domain/shared"
)

// InMemoryStore implements Store with in-memory slices. It is the
// reference implementation for tests and single-process deployments;
// the GORM store provides durability with identical semantics.
type InMemoryStore struct {
	mu         sync.RWMutex
	serializer *Serializer
	streams    map[string][]RecordedEvent
	all        []RecordedEvent
}

// NewInMemoryStore creates a new in-memory event store
func NewInMemoryStore(serializer *Serializer) *InMemoryStore {
	return &InMemoryStore{
		serializer: serializer,
		streams:    make(map[string][]RecordedEvent),
		all:        make([]RecordedEvent, 0),
	}
}

// Append appends events to a stream with optimistic concurrency
func (s *InMemoryStore) Append(ctx context.Context, streamID string, expectedVersion int64, events []shared.DomainEvent) (int64, error) {
	if len(events) == 0 {
		return expectedVersion, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[streamID]
	currentVersion := int64(len(stream))
	if currentVersion != expectedVersion {
		return 0, shared.ErrConcurrencyConflict
	}

	for i, event := range events {
		payload, err := s.serializer.Serialize(event)
		if err != nil {
			// Nothing has been committed yet for this append
			return 0, err
		}
		rec := RecordedEvent{
			StreamID:       streamID,
			Version:        expectedVersion + int64(i) + 1,
			GlobalPosition: int64(len(s.all)) + 1,
			Type:           event.EventType(),
			Payload:        payload,
			Timestamp:      event.OccurredAt(),
		}
		stream = append(stream, rec)
		s.all = append(s.all, rec)
	}

	s.streams[streamID] = stream
	return int64(len(stream)), nil
}

// Read returns the stream's events with version > fromVersion
func (s *InMemoryStore) Read(ctx context.Context, streamID string, fromVersion int64) ([]RecordedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream, ok := s.streams[streamID]
	if !ok || fromVersion >= int64(len(stream)) {
		return []RecordedEvent{}, nil
	}

	result := make([]RecordedEvent, len(stream)-int(fromVersion))
	copy(result, stream[fromVersion:])
	return result, nil
}

// ReadAll returns events across all streams after the given global position
func (s *InMemoryStore) ReadAll(ctx context.Context, afterPosition int64, limit int) ([]RecordedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if afterPosition >= int64(len(s.all)) {
		return []RecordedEvent{}, nil
	}

	remaining := s.all[afterPosition:]
	if limit > 0 && limit < len(remaining) {
		remaining = remaining[:limit]
	}

	result := make([]RecordedEvent, len(remaining))
	copy(result, remaining)
	return result, nil
}

// Ensure InMemoryStore implements Store
var _ Store = (*InMemoryStore)(nil)

// InMemoryCheckpointStore implements CheckpointStore in memory
type InMemoryCheckpointStore struct {
	mu        sync.RWMutex
	positions map[string]int64
}

// NewInMemoryCheckpointStore creates a new in-memory checkpoint store
func NewInMemoryCheckpointStore() *InMemoryCheckpointStore {
	return &InMemoryCheckpointStore{
		positions: make(map[string]int64),
	}
}

// Load returns the saved position for a projection, 0 when absent
func (s *InMemoryCheckpointStore) Load(ctx context.Context, projectionName string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positions[projectionName], nil
}

// Save records the projection's position
func (s *InMemoryCheckpointStore) Save(ctx context.Context, projectionName string, position int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[projectionName] = position
	return nil
}

// Ensure InMemoryCheckpointStore implements CheckpointStore
var _ CheckpointStore = (*InMemoryCheckpointStore)(nil)
