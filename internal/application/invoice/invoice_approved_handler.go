package invoice

import (
	"context"
	"errors"
	"fmt"

	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/invoice"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InvoiceApprovedHandler posts the receivable journal entry when an
// invoice is approved: debit accounts receivable for the invoice total,
// credit revenue for the subtotal and credit each tax line's payable
// account. The event carries all amounts, so the invoice aggregate is
// never loaded here.
type InvoiceApprovedHandler struct {
	journalSvc *appledger.JournalService
	accounts   appledger.PostingAccounts
	logger     *zap.Logger
}

// NewInvoiceApprovedHandler creates a new handler for invoice approved events
func NewInvoiceApprovedHandler(journalSvc *appledger.JournalService, accounts appledger.PostingAccounts, logger *zap.Logger) *InvoiceApprovedHandler {
	return &InvoiceApprovedHandler{
		journalSvc: journalSvc,
		accounts:   accounts,
		logger:     logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *InvoiceApprovedHandler) EventTypes() []string {
	return []string{invoice.EventTypeInvoiceApproved}
}

// Handle posts the receivable entry for an approved invoice
func (h *InvoiceApprovedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	approved, ok := event.(*invoice.InvoiceApprovedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			invoice.EventTypeInvoiceApproved, event.EventType())
	}

	lines := []ledger.JournalLine{
		{
			AccountID: h.accounts.Receivable,
			Side:      ledger.SideDebit,
			Amount:    approved.Total,
			Memo:      "Invoice " + approved.Number,
		},
		{
			AccountID: h.accounts.Revenue,
			Side:      ledger.SideCredit,
			Amount:    approved.Subtotal,
			Memo:      "Invoice " + approved.Number,
		},
	}
	for _, taxLine := range approved.TaxLines {
		if taxLine.Amount.IsZero() {
			continue
		}
		lines = append(lines, ledger.JournalLine{
			AccountID: taxLine.PayableAccountID,
			Side:      ledger.SideCredit,
			Amount:    taxLine.Amount,
			Memo:      fmt.Sprintf("Invoice %s %s", approved.Number, taxLine.RuleName),
		})
	}

	description := fmt.Sprintf("Invoice %s approved for %s", approved.Number, approved.CounterpartyName)
	// The entry ID is derived from the invoice, so a redelivered event
	// targets the same stream and the duplicate append collides.
	entryID := uuid.NewSHA1(approved.InvoiceID, []byte("receivable-posting"))
	entry, err := h.journalSvc.CreateAndPost(ctx, entryID, approved.OccurredAt(), description, lines)
	if errors.Is(err, shared.ErrConcurrencyConflict) {
		h.logger.Debug("receivable entry already posted, skipping",
			zap.String("invoice_id", approved.InvoiceID.String()),
			zap.String("entry_id", entryID.String()),
		)
		return nil
	}
	if err != nil {
		h.logger.Error("failed to post receivable entry for approved invoice",
			zap.String("invoice_id", approved.InvoiceID.String()),
			zap.String("number", approved.Number),
			zap.Error(err),
		)
		return fmt.Errorf("failed to post receivable entry: %w", err)
	}

	h.logger.Info("receivable entry posted for approved invoice",
		zap.String("invoice_id", approved.InvoiceID.String()),
		zap.String("number", approved.Number),
		zap.String("entry_id", entry.ID.String()),
		zap.Int64("sequence", entry.Sequence),
		zap.String("total", approved.Total.String()),
	)
	return nil
}

// Ensure InvoiceApprovedHandler implements shared.EventHandler
var _ shared.EventHandler = (*InvoiceApprovedHandler)(nil)
