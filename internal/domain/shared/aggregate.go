package shared

import "fmt"

// AggregateRoot is the base interface for all aggregate roots.
// Every aggregate owns exactly one event stream; Version tracks the
// last committed stream version for optimistic concurrency.
type AggregateRoot interface {
	Entity
	GetVersion() int64
	SetVersion(version int64)
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot provides common fields for aggregate roots
type BaseAggregateRoot struct {
	BaseEntity
	Version      int64
	domainEvents []DomainEvent
}

// GetVersion returns the committed stream version of the aggregate.
// Pending (uncommitted) events are not counted.
func (a *BaseAggregateRoot) GetVersion() int64 {
	return a.Version
}

// SetVersion records the stream version after a successful append or replay
func (a *BaseAggregateRoot) SetVersion(version int64) {
	a.Version = version
}

// AddDomainEvent adds a domain event to be appended on the next save
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns all pending domain events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents clears the pending domain events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// NewBaseAggregateRoot creates a new base aggregate root.
// Version starts at 0: nothing has been committed to the stream yet.
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity:   NewBaseEntity(),
		Version:      0,
		domainEvents: make([]DomainEvent, 0),
	}
}

// StreamID returns the canonical stream name for an aggregate:
// "{aggregateKind}-{aggregateId}".
func StreamID(kind string, aggregate Entity) string {
	return fmt.Sprintf("%s-%s", kind, aggregate.GetID())
}
