package ledger

import (
	"context"

	"github.com/google/uuid"
)

// JournalEntryRepository loads and saves journal entry aggregates.
// Save appends the aggregate's pending events to its stream at the
// aggregate's committed version; a stale version yields
// shared.ErrConcurrencyConflict.
type JournalEntryRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*JournalEntry, error)
	Save(ctx context.Context, entry *JournalEntry) error
}
