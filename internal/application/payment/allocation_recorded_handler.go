package payment

import (
	"context"
	"errors"
	"fmt"

	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/invoice"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/payment"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AllocationRecordedHandler reacts to payment allocations: it applies the
// allocation to the invoice aggregate (which enforces the invoice-side
// invariant) and posts the settlement journal entry, debiting the
// method's settlement account and crediting accounts receivable. A
// negative correction posts with the sides swapped.
type AllocationRecordedHandler struct {
	invoiceRepo invoice.Repository
	journalSvc  *appledger.JournalService
	accounts    appledger.PostingAccounts
	logger      *zap.Logger
}

// NewAllocationRecordedHandler creates a new handler for allocation events
func NewAllocationRecordedHandler(
	invoiceRepo invoice.Repository,
	journalSvc *appledger.JournalService,
	accounts appledger.PostingAccounts,
	logger *zap.Logger,
) *AllocationRecordedHandler {
	return &AllocationRecordedHandler{
		invoiceRepo: invoiceRepo,
		journalSvc:  journalSvc,
		accounts:    accounts,
		logger:      logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *AllocationRecordedHandler) EventTypes() []string {
	return []string{payment.EventTypePaymentAllocationRecorded}
}

// Handle applies the allocation to the invoice and posts the settlement entry
func (h *AllocationRecordedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	allocated, ok := event.(*payment.PaymentAllocationRecordedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			payment.EventTypePaymentAllocationRecorded, event.EventType())
	}

	inv, err := h.invoiceRepo.FindByID(ctx, allocated.InvoiceID)
	if err != nil {
		return fmt.Errorf("failed to load invoice %s: %w", allocated.InvoiceID, err)
	}
	switch err := inv.ApplyAllocation(allocated.AllocationID, allocated.PaymentID, allocated.Amount); {
	case errors.Is(err, shared.ErrAlreadyExists):
		// Applied on a previous attempt; continue to the journal posting
		h.logger.Debug("allocation already applied to invoice, skipping",
			zap.String("invoice_id", allocated.InvoiceID.String()),
			zap.String("allocation_id", allocated.AllocationID.String()),
		)
	case err != nil:
		h.logger.Error("invoice rejected payment allocation",
			zap.String("invoice_id", allocated.InvoiceID.String()),
			zap.String("payment_id", allocated.PaymentID.String()),
			zap.String("allocation_id", allocated.AllocationID.String()),
			zap.String("amount", allocated.Amount.String()),
			zap.Error(err),
		)
		return err
	default:
		if err := h.invoiceRepo.Save(ctx, inv); err != nil {
			return fmt.Errorf("failed to save invoice %s: %w", allocated.InvoiceID, err)
		}
	}

	settlementID, err := h.accounts.SettlementAccount(allocated.Method.String())
	if err != nil {
		return err
	}

	settlementSide, receivableSide := ledger.SideDebit, ledger.SideCredit
	if allocated.Amount.IsNegative() {
		settlementSide, receivableSide = ledger.SideCredit, ledger.SideDebit
	}
	amount := allocated.Amount.Abs()
	memo := fmt.Sprintf("Payment %s to invoice %s", allocated.PaymentNumber, inv.Number)

	lines := []ledger.JournalLine{
		{AccountID: settlementID, Side: settlementSide, Amount: amount, Memo: memo},
		{AccountID: h.accounts.Receivable, Side: receivableSide, Amount: amount, Memo: memo},
	}

	description := fmt.Sprintf("Settlement of invoice %s by payment %s", inv.Number, allocated.PaymentNumber)
	if allocated.CorrectionOfID != nil {
		description = fmt.Sprintf("Correction of payment %s allocation to invoice %s", allocated.PaymentNumber, inv.Number)
	}

	// The entry ID is derived from the allocation, so a redelivered event
	// targets the same stream and the duplicate append collides.
	entryID := uuid.NewSHA1(allocated.AllocationID, []byte("settlement-posting"))
	entry, err := h.journalSvc.CreateAndPost(ctx, entryID, allocated.OccurredAt(), description, lines)
	if errors.Is(err, shared.ErrConcurrencyConflict) {
		h.logger.Debug("settlement entry already posted, skipping",
			zap.String("allocation_id", allocated.AllocationID.String()),
			zap.String("entry_id", entryID.String()),
		)
		return nil
	}
	if err != nil {
		h.logger.Error("failed to post settlement entry",
			zap.String("invoice_id", allocated.InvoiceID.String()),
			zap.String("payment_id", allocated.PaymentID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to post settlement entry: %w", err)
	}

	h.logger.Info("allocation applied and settlement posted",
		zap.String("invoice_id", allocated.InvoiceID.String()),
		zap.String("payment_id", allocated.PaymentID.String()),
		zap.String("entry_id", entry.ID.String()),
		zap.Int64("sequence", entry.Sequence),
		zap.String("amount", allocated.Amount.String()),
		zap.String("invoice_status", inv.Status.String()),
	)
	return nil
}

// Ensure AllocationRecordedHandler implements shared.EventHandler
var _ shared.EventHandler = (*AllocationRecordedHandler)(nil)
