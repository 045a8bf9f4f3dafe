package persistence

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/eventstore"
	"github.com/google/uuid"
)

// JournalEntryRepository is the event-sourced implementation of
// ledger.JournalEntryRepository. Aggregates are rehydrated by replaying
// their stream; saves append pending events and publish them after the
// append has committed.
type JournalEntryRepository struct {
	store      eventstore.Store
	serializer *eventstore.Serializer
	publisher  shared.EventPublisher
}

// NewJournalEntryRepository creates a new journal entry repository
func NewJournalEntryRepository(store eventstore.Store, serializer *eventstore.Serializer, publisher shared.EventPublisher) *JournalEntryRepository {
	return &JournalEntryRepository{
		store:      store,
		serializer: serializer,
		publisher:  publisher,
	}
}

// FindByID rehydrates a journal entry from its event stream
func (r *JournalEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.JournalEntry, error) {
	streamID := fmt.Sprintf("%s-%s", ledger.AggregateTypeJournalEntry, id)
	recs, err := r.store.Read(ctx, streamID, 0)
	if err != nil {
		return nil, err
	}
	events, err := r.serializer.DecodeAll(recs)
	if err != nil {
		return nil, err
	}
	return ledger.ReplayJournalEntry(events)
}

// Save appends the entry's pending events to its stream and publishes
// them once durably appended
func (r *JournalEntryRepository) Save(ctx context.Context, entry *ledger.JournalEntry) error {
	return saveAggregate(ctx, r.store, r.publisher, entry, entry.StreamID())
}

// Ensure JournalEntryRepository implements the domain contract
var _ ledger.JournalEntryRepository = (*JournalEntryRepository)(nil)
