package ledger

import (
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeJournalEntry is the aggregate kind used in event metadata
// and stream names ("JournalEntry-{id}").
const AggregateTypeJournalEntry = "JournalEntry"

// EntryStatus represents the status of a journal entry
type EntryStatus string

const (
	EntryStatusDraft    EntryStatus = "DRAFT"    // Mutable, not yet part of the ledger
	EntryStatusPosted   EntryStatus = "POSTED"   // Immutable, counted in balances
	EntryStatusReversed EntryStatus = "REVERSED" // Posted and compensated by a reversal entry
)

// IsValid checks if the status is a valid EntryStatus
func (s EntryStatus) IsValid() bool {
	switch s {
	case EntryStatusDraft, EntryStatusPosted, EntryStatusReversed:
		return true
	}
	return false
}

// String returns the string representation of EntryStatus
func (s EntryStatus) String() string {
	return string(s)
}

// JournalLine is a single debit or credit within a journal entry.
// It belongs exclusively to one entry.
type JournalLine struct {
	AccountID uuid.UUID         `json:"account_id"`
	Side      Side              `json:"side"`
	Amount    valueobject.Money `json:"amount"`
	Memo      string            `json:"memo,omitempty"`
}

// Swapped returns a copy of the line with the debit/credit side flipped
func (l JournalLine) Swapped() JournalLine {
	return JournalLine{
		AccountID: l.AccountID,
		Side:      l.Side.Opposite(),
		Amount:    l.Amount,
		Memo:      l.Memo,
	}
}

// ValidateLines checks the structural invariants every entry must satisfy:
// at least two lines, positive amounts, valid sides, and a single currency.
func ValidateLines(lines []JournalLine) error {
	if len(lines) < 2 {
		return shared.NewDomainError("TOO_FEW_LINES", "Journal entry requires at least two lines")
	}
	currency := lines[0].Amount.Currency()
	for _, line := range lines {
		if line.AccountID == uuid.Nil {
			return shared.NewDomainError("INVALID_ACCOUNT", "Journal line account cannot be empty")
		}
		if !line.Side.IsValid() {
			return shared.NewDomainError("INVALID_SIDE", "Journal line side must be DEBIT or CREDIT")
		}
		if !line.Amount.IsPositive() {
			return shared.NewDomainError("INVALID_AMOUNT", "Journal line amount must be positive")
		}
		if line.Amount.Currency() != currency {
			return shared.ErrMixedCurrencies
		}
	}
	return nil
}

// JournalEntry is the double-entry journal aggregate root.
// State is derived from its event stream; commands validate, then raise
// events which are applied locally and appended on save.
type JournalEntry struct {
	shared.BaseAggregateRoot
	Sequence     int64                `json:"sequence"` // Assigned at post time
	EntryDate    time.Time            `json:"entry_date"`
	Description  string               `json:"description"`
	Status       EntryStatus          `json:"status"`
	Lines        []JournalLine        `json:"lines"`
	Currency     valueobject.Currency `json:"currency"`
	ReversalOfID *uuid.UUID           `json:"reversal_of_id,omitempty"` // Set on the compensating entry
	ReversedByID *uuid.UUID           `json:"reversed_by_id,omitempty"` // Set on the original once reversed
	PostedAt     *time.Time           `json:"posted_at,omitempty"`
}

// NewJournalEntry creates a new draft journal entry
func NewJournalEntry(entryDate time.Time, description string, lines []JournalLine) (*JournalEntry, error) {
	return NewJournalEntryWithID(uuid.New(), entryDate, description, lines)
}

// NewJournalEntryWithID creates a draft entry under a caller-chosen ID.
// Reactors derive the ID from the triggering event so a redelivery
// targets the same stream instead of minting a second entry.
func NewJournalEntryWithID(id uuid.UUID, entryDate time.Time, description string, lines []JournalLine) (*JournalEntry, error) {
	if id == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ENTRY_ID", "Entry ID cannot be empty")
	}
	if err := ValidateLines(lines); err != nil {
		return nil, err
	}

	entry := &JournalEntry{BaseAggregateRoot: shared.NewBaseAggregateRoot()}
	entry.ID = id
	entry.raise(NewJournalEntryCreatedEvent(entry.ID, entryDate, description, lines, nil))
	return entry, nil
}

// NewReversalEntry creates a draft entry whose lines are the original's
// with debit/credit sides swapped, referencing the original entry.
// Only legal against a posted entry that has not already been reversed.
func NewReversalEntry(original *JournalEntry, entryDate time.Time) (*JournalEntry, error) {
	if original.Status != EntryStatusPosted {
		return nil, shared.NewDomainError("STATE_ERROR",
			fmt.Sprintf("Cannot reverse entry in %s status", original.Status))
	}
	if original.ReversedByID != nil {
		return nil, shared.NewDomainError("STATE_ERROR", "Entry has already been reversed")
	}

	lines := make([]JournalLine, len(original.Lines))
	for i, line := range original.Lines {
		lines[i] = line.Swapped()
	}

	entry := &JournalEntry{BaseAggregateRoot: shared.NewBaseAggregateRoot()}
	originalID := original.ID
	description := fmt.Sprintf("Reversal of entry %d", original.Sequence)
	entry.raise(NewJournalEntryCreatedEvent(entry.ID, entryDate, description, lines, &originalID))
	return entry, nil
}

// UpdateLines replaces the lines of a draft entry
func (e *JournalEntry) UpdateLines(lines []JournalLine) error {
	if e.Status != EntryStatusDraft {
		return shared.NewDomainError("STATE_ERROR",
			fmt.Sprintf("Cannot update lines of entry in %s status", e.Status))
	}
	if err := ValidateLines(lines); err != nil {
		return err
	}

	e.raise(NewJournalEntryUpdatedEvent(e.ID, lines))
	return nil
}

// Post transitions the entry from Draft to Posted. The entry must balance
// exactly: sum of debits equals sum of credits, no rounding tolerance.
func (e *JournalEntry) Post(sequence int64) error {
	if e.Status != EntryStatusDraft {
		return shared.NewDomainError("STATE_ERROR",
			fmt.Sprintf("Cannot post entry in %s status", e.Status))
	}
	if !e.IsBalanced() {
		return shared.ErrUnbalancedEntry
	}
	if sequence <= 0 {
		return shared.NewDomainError("INVALID_SEQUENCE", "Entry sequence must be positive")
	}

	e.raise(NewJournalEntryPostedEvent(e, sequence, time.Now()))
	return nil
}

// MarkReversed records on a posted entry that a compensating entry exists.
// The compensating entry itself is a separate aggregate created via
// NewReversalEntry and posted through the normal path.
func (e *JournalEntry) MarkReversed(reversalEntryID uuid.UUID) error {
	if e.Status != EntryStatusPosted {
		return shared.NewDomainError("STATE_ERROR",
			fmt.Sprintf("Cannot mark entry in %s status as reversed", e.Status))
	}
	if e.ReversedByID != nil {
		return shared.NewDomainError("STATE_ERROR", "Entry has already been reversed")
	}

	e.raise(NewJournalEntryReversedEvent(e, reversalEntryID))
	return nil
}

// TotalDebits returns the sum of all debit line amounts
func (e *JournalEntry) TotalDebits() decimal.Decimal {
	total := decimal.Zero
	for _, line := range e.Lines {
		if line.Side == SideDebit {
			total = total.Add(line.Amount.Amount())
		}
	}
	return total
}

// TotalCredits returns the sum of all credit line amounts
func (e *JournalEntry) TotalCredits() decimal.Decimal {
	total := decimal.Zero
	for _, line := range e.Lines {
		if line.Side == SideCredit {
			total = total.Add(line.Amount.Amount())
		}
	}
	return total
}

// IsBalanced returns true if debits equal credits exactly
func (e *JournalEntry) IsBalanced() bool {
	return e.TotalDebits().Equal(e.TotalCredits())
}

// IsReversal returns true if this entry compensates another entry
func (e *JournalEntry) IsReversal() bool {
	return e.ReversalOfID != nil
}

// StreamID returns the event stream name for this entry
func (e *JournalEntry) StreamID() string {
	return shared.StreamID(AggregateTypeJournalEntry, e)
}

// raise applies an event to local state and queues it for append
func (e *JournalEntry) raise(event shared.DomainEvent) {
	e.apply(event)
	e.AddDomainEvent(event)
}

// apply folds a single event into aggregate state. It is the only place
// state is mutated, so replaying the stream reproduces the aggregate.
func (e *JournalEntry) apply(event shared.DomainEvent) {
	switch ev := event.(type) {
	case *JournalEntryCreatedEvent:
		e.BaseEntity = shared.NewBaseEntityWithID(ev.EntryID, ev.OccurredAt())
		e.EntryDate = ev.EntryDate
		e.Description = ev.Description
		e.Status = EntryStatusDraft
		e.Lines = ev.Lines
		e.Currency = ev.Lines[0].Amount.Currency()
		e.ReversalOfID = ev.ReversalOfID
	case *JournalEntryUpdatedEvent:
		e.Lines = ev.Lines
		e.Currency = ev.Lines[0].Amount.Currency()
		e.UpdatedAt = ev.OccurredAt()
	case *JournalEntryPostedEvent:
		postedAt := ev.PostedAt
		e.Status = EntryStatusPosted
		e.Sequence = ev.Sequence
		e.PostedAt = &postedAt
		e.UpdatedAt = ev.OccurredAt()
	case *JournalEntryReversedEvent:
		reversalID := ev.ReversalEntryID
		e.Status = EntryStatusReversed
		e.ReversedByID = &reversalID
		e.UpdatedAt = ev.OccurredAt()
	}
}

// ReplayJournalEntry rebuilds a journal entry from its event stream
func ReplayJournalEntry(events []shared.DomainEvent) (*JournalEntry, error) {
	if len(events) == 0 {
		return nil, shared.ErrNotFound
	}

	entry := &JournalEntry{}
	for _, event := range events {
		entry.apply(event)
	}
	entry.SetVersion(int64(len(events)))
	return entry, nil
}
