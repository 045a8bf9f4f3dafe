package ledger

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type names for the JournalEntry aggregate
const (
	EventTypeJournalEntryCreated  = "JournalEntryCreated"
	EventTypeJournalEntryUpdated  = "JournalEntryUpdated"
	EventTypeJournalEntryPosted   = "JournalEntryPosted"
	EventTypeJournalEntryReversed = "JournalEntryReversed"
)

// JournalEntryCreatedEvent is raised when a draft entry is created.
// ReversalOfID is set when the draft compensates a previously posted entry.
type JournalEntryCreatedEvent struct {
	shared.BaseDomainEvent
	EntryID      uuid.UUID     `json:"entry_id"`
	EntryDate    time.Time     `json:"entry_date"`
	Description  string        `json:"description"`
	Lines        []JournalLine `json:"lines"`
	ReversalOfID *uuid.UUID    `json:"reversal_of_id,omitempty"`
}

// EventType returns the event type name
func (e *JournalEntryCreatedEvent) EventType() string {
	return EventTypeJournalEntryCreated
}

// NewJournalEntryCreatedEvent creates a new JournalEntryCreatedEvent
func NewJournalEntryCreatedEvent(entryID uuid.UUID, entryDate time.Time, description string, lines []JournalLine, reversalOfID *uuid.UUID) *JournalEntryCreatedEvent {
	return &JournalEntryCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJournalEntryCreated, AggregateTypeJournalEntry, entryID),
		EntryID:         entryID,
		EntryDate:       entryDate,
		Description:     description,
		Lines:           lines,
		ReversalOfID:    reversalOfID,
	}
}

// JournalEntryUpdatedEvent is raised when a draft entry's lines are replaced
type JournalEntryUpdatedEvent struct {
	shared.BaseDomainEvent
	EntryID uuid.UUID     `json:"entry_id"`
	Lines   []JournalLine `json:"lines"`
}

// EventType returns the event type name
func (e *JournalEntryUpdatedEvent) EventType() string {
	return EventTypeJournalEntryUpdated
}

// NewJournalEntryUpdatedEvent creates a new JournalEntryUpdatedEvent
func NewJournalEntryUpdatedEvent(entryID uuid.UUID, lines []JournalLine) *JournalEntryUpdatedEvent {
	return &JournalEntryUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJournalEntryUpdated, AggregateTypeJournalEntry, entryID),
		EntryID:         entryID,
		Lines:           lines,
	}
}

// JournalEntryPostedEvent is raised when an entry is posted. It carries the
// full line set and entry date so balance projections can fold it without
// loading the aggregate.
type JournalEntryPostedEvent struct {
	shared.BaseDomainEvent
	EntryID      uuid.UUID       `json:"entry_id"`
	Sequence     int64           `json:"sequence"`
	EntryDate    time.Time       `json:"entry_date"`
	Lines        []JournalLine   `json:"lines"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	ReversalOfID *uuid.UUID      `json:"reversal_of_id,omitempty"`
	PostedAt     time.Time       `json:"posted_at"`
}

// EventType returns the event type name
func (e *JournalEntryPostedEvent) EventType() string {
	return EventTypeJournalEntryPosted
}

// NewJournalEntryPostedEvent creates a new JournalEntryPostedEvent
func NewJournalEntryPostedEvent(entry *JournalEntry, sequence int64, postedAt time.Time) *JournalEntryPostedEvent {
	return &JournalEntryPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJournalEntryPosted, AggregateTypeJournalEntry, entry.ID),
		EntryID:         entry.ID,
		Sequence:        sequence,
		EntryDate:       entry.EntryDate,
		Lines:           entry.Lines,
		TotalDebits:     entry.TotalDebits(),
		TotalCredits:    entry.TotalCredits(),
		ReversalOfID:    entry.ReversalOfID,
		PostedAt:        postedAt,
	}
}

// JournalEntryReversedEvent is raised on the original entry when a
// compensating entry has been created for it
type JournalEntryReversedEvent struct {
	shared.BaseDomainEvent
	EntryID         uuid.UUID `json:"entry_id"`
	Sequence        int64     `json:"sequence"`
	ReversalEntryID uuid.UUID `json:"reversal_entry_id"`
}

// EventType returns the event type name
func (e *JournalEntryReversedEvent) EventType() string {
	return EventTypeJournalEntryReversed
}

// NewJournalEntryReversedEvent creates a new JournalEntryReversedEvent
func NewJournalEntryReversedEvent(entry *JournalEntry, reversalEntryID uuid.UUID) *JournalEntryReversedEvent {
	return &JournalEntryReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJournalEntryReversed, AggregateTypeJournalEntry, entry.ID),
		EntryID:         entry.ID,
		Sequence:        entry.Sequence,
		ReversalEntryID: reversalEntryID,
	}
}
