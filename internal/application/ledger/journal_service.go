package ledger

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LineInput is one journal line in a command
type LineInput struct {
	AccountID uuid.UUID `json:"account_id" validate:"required"`
	Side      string    `json:"side" validate:"required,oneof=DEBIT CREDIT"`
	Amount    string    `json:"amount" validate:"required"`
	Currency  string    `json:"currency" validate:"required,len=3"`
	Memo      string    `json:"memo"`
}

// CreateEntryCommand creates a draft journal entry
type CreateEntryCommand struct {
	EntryDate   time.Time   `json:"entry_date" validate:"required"`
	Description string      `json:"description" validate:"required,max=500"`
	Lines       []LineInput `json:"lines" validate:"required,min=2,dive"`
}

// UpdateLinesCommand replaces the lines of a draft entry
type UpdateLinesCommand struct {
	EntryID uuid.UUID   `json:"entry_id" validate:"required"`
	Lines   []LineInput `json:"lines" validate:"required,min=2,dive"`
}

// JournalService provides application-level journal operations
type JournalService struct {
	entryRepo ledger.JournalEntryRepository
	chart     *ledger.ChartOfAccounts
	sequences SequenceAllocator
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewJournalService creates a new JournalService
func NewJournalService(
	entryRepo ledger.JournalEntryRepository,
	chart *ledger.ChartOfAccounts,
	sequences SequenceAllocator,
	logger *zap.Logger,
) *JournalService {
	return &JournalService{
		entryRepo: entryRepo,
		chart:     chart,
		sequences: sequences,
		validate:  validator.New(),
		logger:    logger,
	}
}

// CreateDraft creates a new draft journal entry. Every referenced account
// must exist in the chart and be active.
func (s *JournalService) CreateDraft(ctx context.Context, cmd CreateEntryCommand) (*ledger.JournalEntry, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", err.Error())
	}

	lines, err := s.toJournalLines(cmd.Lines)
	if err != nil {
		return nil, err
	}

	entry, err := ledger.NewJournalEntry(cmd.EntryDate, cmd.Description, lines)
	if err != nil {
		return nil, err
	}
	if err := s.entryRepo.Save(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info("draft journal entry created",
		zap.String("entry_id", entry.ID.String()),
		zap.Int("lines", len(lines)),
	)
	return entry, nil
}

// UpdateDraftLines replaces the lines of a draft entry
func (s *JournalService) UpdateDraftLines(ctx context.Context, cmd UpdateLinesCommand) (*ledger.JournalEntry, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", err.Error())
	}

	lines, err := s.toJournalLines(cmd.Lines)
	if err != nil {
		return nil, err
	}

	entry, err := s.entryRepo.FindByID(ctx, cmd.EntryID)
	if err != nil {
		return nil, err
	}
	if err := entry.UpdateLines(lines); err != nil {
		return nil, err
	}
	if err := s.entryRepo.Save(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Post posts a draft entry to the ledger, assigning its sequence number.
// expectedVersion is the aggregate version the caller last observed; the
// post is rejected when the entry has moved past it.
func (s *JournalService) Post(ctx context.Context, entryID uuid.UUID, expectedVersion int64) (*ledger.JournalEntry, error) {
	entry, err := s.entryRepo.FindByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.GetVersion() != expectedVersion {
		return nil, shared.ErrConcurrencyConflict
	}

	sequence, err := s.sequences.Next(ctx)
	if err != nil {
		return nil, err
	}
	if err := entry.Post(sequence); err != nil {
		return nil, err
	}
	if err := s.entryRepo.Save(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info("journal entry posted",
		zap.String("entry_id", entry.ID.String()),
		zap.Int64("sequence", sequence),
		zap.String("total", entry.TotalDebits().String()),
	)
	return entry, nil
}

// Reverse compensates a posted entry: it creates and posts a new entry
// with all sides swapped, then marks the original as reversed. The
// original is never mutated beyond the reversed marker. expectedVersion
// guards the original the same way Post guards the draft.
func (s *JournalService) Reverse(ctx context.Context, entryID uuid.UUID, expectedVersion int64, entryDate time.Time) (*ledger.JournalEntry, error) {
	original, err := s.entryRepo.FindByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if original.GetVersion() != expectedVersion {
		return nil, shared.ErrConcurrencyConflict
	}

	reversal, err := ledger.NewReversalEntry(original, entryDate)
	if err != nil {
		return nil, err
	}
	sequence, err := s.sequences.Next(ctx)
	if err != nil {
		return nil, err
	}
	if err := reversal.Post(sequence); err != nil {
		return nil, err
	}
	if err := s.entryRepo.Save(ctx, reversal); err != nil {
		return nil, err
	}

	if err := original.MarkReversed(reversal.ID); err != nil {
		return nil, err
	}
	if err := s.entryRepo.Save(ctx, original); err != nil {
		return nil, err
	}

	s.logger.Info("journal entry reversed",
		zap.String("entry_id", original.ID.String()),
		zap.String("reversal_entry_id", reversal.ID.String()),
		zap.Int64("reversal_sequence", sequence),
	)
	return reversal, nil
}

// CreateAndPost creates a draft from already validated domain lines and
// posts it in one call. Used by the reactors that turn invoice and
// payment events into ledger postings. Callers pass a deterministic
// entryID so a redelivered event recreates the same stream and the
// duplicate append fails with shared.ErrConcurrencyConflict instead of
// posting twice.
func (s *JournalService) CreateAndPost(ctx context.Context, entryID uuid.UUID, entryDate time.Time, description string, lines []ledger.JournalLine) (*ledger.JournalEntry, error) {
	for _, line := range lines {
		if _, err := s.chart.RequireActive(line.AccountID); err != nil {
			return nil, err
		}
	}

	entry, err := ledger.NewJournalEntryWithID(entryID, entryDate, description, lines)
	if err != nil {
		return nil, err
	}
	sequence, err := s.sequences.Next(ctx)
	if err != nil {
		return nil, err
	}
	if err := entry.Post(sequence); err != nil {
		return nil, err
	}
	if err := s.entryRepo.Save(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// GetEntry loads a journal entry by ID
func (s *JournalService) GetEntry(ctx context.Context, entryID uuid.UUID) (*ledger.JournalEntry, error) {
	return s.entryRepo.FindByID(ctx, entryID)
}

// toJournalLines converts command inputs to domain lines, checking each
// account against the chart
func (s *JournalService) toJournalLines(inputs []LineInput) ([]ledger.JournalLine, error) {
	lines := make([]ledger.JournalLine, len(inputs))
	for i, in := range inputs {
		if _, err := s.chart.RequireActive(in.AccountID); err != nil {
			return nil, err
		}
		amount, err := valueobject.NewMoneyFromString(in.Amount, valueobject.Currency(in.Currency))
		if err != nil {
			return nil, shared.NewDomainError("INVALID_AMOUNT", err.Error())
		}
		lines[i] = ledger.JournalLine{
			AccountID: in.AccountID,
			Side:      ledger.Side(in.Side),
			Amount:    amount,
			Memo:      in.Memo,
		}
	}
	return lines, nil
}
