package eventstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/erp/ledger/internal/domain/shared"
)

// Serializer handles JSON serialization/deserialization of domain events
// for storage in the event log
type Serializer struct {
	mu       sync.RWMutex
	registry map[string]reflect.Type // eventType -> Go type
}

// NewSerializer creates a new event serializer
func NewSerializer() *Serializer {
	return &Serializer{
		registry: make(map[string]reflect.Type),
	}
}

// Register registers an event type for deserialization
// The eventType should match what EventType() returns on the event
func (s *Serializer) Register(eventType string, eventInstance shared.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := reflect.TypeOf(eventInstance)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	s.registry[eventType] = t
}

// Serialize serializes a domain event to JSON bytes
func (s *Serializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	return json.Marshal(event)
}

// Deserialize deserializes JSON bytes to a domain event
func (s *Serializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	t, ok := s.registry[eventType]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	// Create new instance of the registered type
	eventPtr := reflect.New(t).Interface()

	if err := json.Unmarshal(data, eventPtr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	event, ok := eventPtr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("deserialized object does not implement DomainEvent")
	}

	return event, nil
}

// DecodeRecorded deserializes a recorded event back into its domain event
func (s *Serializer) DecodeRecorded(rec RecordedEvent) (shared.DomainEvent, error) {
	return s.Deserialize(rec.Type, rec.Payload)
}

// DecodeAll deserializes a slice of recorded events, preserving order
func (s *Serializer) DecodeAll(recs []RecordedEvent) ([]shared.DomainEvent, error) {
	events := make([]shared.DomainEvent, 0, len(recs))
	for _, rec := range recs {
		event, err := s.DecodeRecorded(rec)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// IsRegistered checks if an event type is registered
func (s *Serializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registry[eventType]
	return ok
}

// RegisteredTypes returns all registered event types
func (s *Serializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]string, 0, len(s.registry))
	for t := range s.registry {
		types = append(types, t)
	}
	return types
}
