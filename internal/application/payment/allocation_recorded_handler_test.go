package payment

import (
	"context"
	"testing"
	"time"

	appinvoice "github.com/erp/ledger/internal/application/invoice"
	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/invoice"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/payment"
	"github.com/erp/ledger/internal/domain/tax"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/eventstore"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// settlementFixture wires the full reactor pipeline: invoice approval posts
// the receivable entry, payment allocations settle it
type settlementFixture struct {
	store       *eventstore.InMemoryStore
	serializer  *eventstore.Serializer
	invoiceRepo invoice.Repository
	invoiceSvc  *appinvoice.InvoiceService
	paymentSvc  *PaymentService
	handler     *AllocationRecordedHandler
	accounts    appledger.PostingAccounts
	bank        *ledger.Account
	receivable  *ledger.Account
}

func newSettlementFixture(t *testing.T) *settlementFixture {
	serializer := eventstore.NewDomainSerializer()
	store := eventstore.NewInMemoryStore(serializer)
	bus := event.NewInMemoryEventBus(zap.NewNop())

	chart := ledger.NewChartOfAccounts()
	register := func(code, name string, typ ledger.AccountType) *ledger.Account {
		account, err := ledger.NewAccount(code, name, typ, nil)
		require.NoError(t, err)
		require.NoError(t, chart.Register(account))
		return account
	}
	bank := register("1010", "Bank", ledger.AccountTypeAsset)
	receivable := register("1200", "Accounts Receivable", ledger.AccountTypeAsset)
	vatPayable := register("2100", "VAT Payable", ledger.AccountTypeLiability)
	register("4000", "Revenue", ledger.AccountTypeRevenue)

	revenue, err := chart.GetByCode("4000")
	require.NoError(t, err)

	taxPolicies := tax.NewPolicyRegistry()
	taxPolicies.Register(tax.JurisdictionConfig{
		Key: "DEFAULT",
		Rules: []tax.Rule{
			{Key: "VAT_STANDARD", Name: "VAT 15%", Rate: decimal.RequireFromString("0.15"), PayableAccountID: vatPayable.ID},
		},
	})

	entryRepo := persistence.NewJournalEntryRepository(store, serializer, bus)
	invoiceRepo := persistence.NewInvoiceRepository(store, serializer, bus)
	paymentRepo := persistence.NewPaymentRepository(store, serializer, bus)

	journalSvc := appledger.NewJournalService(entryRepo, chart, appledger.NewMemorySequenceAllocator(0), zap.NewNop())
	accounts := appledger.PostingAccounts{
		Receivable: receivable.ID,
		Revenue:    revenue.ID,
		Settlement: map[string]uuid.UUID{payment.MethodBankTransfer.String(): bank.ID},
	}

	approvedHandler := appinvoice.NewInvoiceApprovedHandler(journalSvc, accounts, zap.NewNop())
	allocationHandler := NewAllocationRecordedHandler(invoiceRepo, journalSvc, accounts, zap.NewNop())
	bus.Subscribe(approvedHandler, approvedHandler.EventTypes()...)
	bus.Subscribe(allocationHandler, allocationHandler.EventTypes()...)

	return &settlementFixture{
		store:       store,
		serializer:  serializer,
		invoiceRepo: invoiceRepo,
		invoiceSvc:  appinvoice.NewInvoiceService(invoiceRepo, taxPolicies, zap.NewNop()),
		paymentSvc:  NewPaymentService(paymentRepo, &stubInvoiceSource{}, zap.NewNop()),
		handler:     allocationHandler,
		accounts:    accounts,
		bank:        bank,
		receivable:  receivable,
	}
}

// approvedInvoice creates and approves an invoice totalling 1150.00
// (1000.00 subtotal + 15% VAT)
func (f *settlementFixture) approvedInvoice(t *testing.T) *invoice.Invoice {
	inv, err := f.invoiceSvc.CreateInvoice(context.Background(), appinvoice.CreateInvoiceCommand{
		Number:           "INV-001",
		CounterpartyID:   uuid.New(),
		CounterpartyName: "Acme Corp",
		Currency:         "USD",
		Jurisdiction:     "DEFAULT",
		DueDate:          time.Now().AddDate(0, 1, 0),
		Items: []appinvoice.LineItemInput{
			{Description: "Consulting", Category: "SERVICES", Quantity: "4", UnitPrice: "250.00"},
		},
	})
	require.NoError(t, err)
	approved, err := f.invoiceSvc.ApproveInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	return approved
}

func (f *settlementFixture) recordPayment(t *testing.T, amount string) *payment.Payment {
	p, err := f.paymentSvc.RecordPayment(context.Background(), RecordPaymentCommand{
		Number:         "PAY-001",
		Method:         "BANK_TRANSFER",
		CounterpartyID: uuid.New(),
		Amount:         amount,
		Currency:       "USD",
	})
	require.NoError(t, err)
	return p
}

func (f *settlementFixture) postedEntries(t *testing.T) []*ledger.JournalEntryPostedEvent {
	recs, err := f.store.ReadAll(context.Background(), 0, 0)
	require.NoError(t, err)

	var posted []*ledger.JournalEntryPostedEvent
	for _, rec := range recs {
		decoded, err := f.serializer.DecodeRecorded(rec)
		require.NoError(t, err)
		if ev, ok := decoded.(*ledger.JournalEntryPostedEvent); ok {
			posted = append(posted, ev)
		}
	}
	return posted
}

func (f *settlementFixture) allocationEvents(t *testing.T) []*payment.PaymentAllocationRecordedEvent {
	recs, err := f.store.ReadAll(context.Background(), 0, 0)
	require.NoError(t, err)

	var events []*payment.PaymentAllocationRecordedEvent
	for _, rec := range recs {
		decoded, err := f.serializer.DecodeRecorded(rec)
		require.NoError(t, err)
		if ev, ok := decoded.(*payment.PaymentAllocationRecordedEvent); ok {
			events = append(events, ev)
		}
	}
	return events
}

func TestAllocationRecordedHandler_SettlesInvoice(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture(t)

	inv := f.approvedInvoice(t)
	p := f.recordPayment(t, "500.00")

	_, err := f.paymentSvc.Allocate(ctx, p.ID, inv.ID, usd("500.00"))
	require.NoError(t, err)

	// The reactor applied the allocation to the invoice aggregate
	reloaded, err := f.invoiceRepo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPartiallyPaid, reloaded.Status)
	assert.Equal(t, "650.00", reloaded.Balance().StringFixed(2))

	// And posted the settlement entry after the receivable entry
	posted := f.postedEntries(t)
	require.Len(t, posted, 2)
	settlement := posted[1]
	assert.Equal(t, int64(2), settlement.Sequence)
	require.Len(t, settlement.Lines, 2)

	for _, line := range settlement.Lines {
		switch line.AccountID {
		case f.bank.ID:
			assert.Equal(t, ledger.SideDebit, line.Side)
		case f.receivable.ID:
			assert.Equal(t, ledger.SideCredit, line.Side)
		default:
			t.Fatalf("unexpected account in settlement entry: %s", line.AccountID)
		}
		assert.Equal(t, "500.00", line.Amount.StringFixed(2))
	}
}

func TestAllocationRecordedHandler_FullPaymentMarksInvoicePaid(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture(t)

	inv := f.approvedInvoice(t)
	p := f.recordPayment(t, "1150.00")

	_, err := f.paymentSvc.Allocate(ctx, p.ID, inv.ID, usd("1150.00"))
	require.NoError(t, err)

	reloaded, err := f.invoiceRepo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPaid, reloaded.Status)
	assert.True(t, reloaded.Balance().IsZero())
}

func TestAllocationRecordedHandler_CorrectionSwapsSides(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture(t)

	inv := f.approvedInvoice(t)
	p := f.recordPayment(t, "500.00")
	allocation, err := f.paymentSvc.Allocate(ctx, p.ID, inv.ID, usd("500.00"))
	require.NoError(t, err)

	_, err = f.paymentSvc.CorrectAllocation(ctx, p.ID, allocation.ID, usd("200.00"))
	require.NoError(t, err)

	// Invoice balance grows back by the corrected amount
	reloaded, err := f.invoiceRepo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPartiallyPaid, reloaded.Status)
	assert.Equal(t, "850.00", reloaded.Balance().StringFixed(2))

	// Correction entry posts with the sides swapped
	posted := f.postedEntries(t)
	require.Len(t, posted, 3)
	correction := posted[2]
	require.Len(t, correction.Lines, 2)
	for _, line := range correction.Lines {
		switch line.AccountID {
		case f.bank.ID:
			assert.Equal(t, ledger.SideCredit, line.Side)
		case f.receivable.ID:
			assert.Equal(t, ledger.SideDebit, line.Side)
		}
		assert.Equal(t, "200.00", line.Amount.StringFixed(2))
	}
}

func TestAllocationRecordedHandler_RedeliveryDoesNotDoubleApply(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture(t)

	inv := f.approvedInvoice(t)
	p := f.recordPayment(t, "500.00")
	_, err := f.paymentSvc.Allocate(ctx, p.ID, inv.ID, usd("500.00"))
	require.NoError(t, err)

	events := f.allocationEvents(t)
	require.Len(t, events, 1)

	// Simulate a reactor retry after the invoice write already succeeded:
	// the duplicate is detected on the invoice and treated as progress
	require.NoError(t, f.handler.Handle(ctx, events[0]))

	reloaded, err := f.invoiceRepo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "650.00", reloaded.Balance().StringFixed(2))

	// The settlement entry ID is derived from the allocation, so the
	// retry collided with the already-posted entry instead of minting a
	// second one: still one receivable entry plus one settlement entry
	require.Len(t, f.postedEntries(t), 2)
}

func TestAllocationRecordedHandler_UnmappedMethodFails(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture(t)
	inv := f.approvedInvoice(t)

	// CASH has no settlement account bound in this fixture
	p, err := payment.NewPayment("PAY-CASH", payment.MethodCash, uuid.New(), usd("100.00"))
	require.NoError(t, err)
	_, err = p.Allocate(inv.ID, usd("100.00"))
	require.NoError(t, err)

	events := p.GetDomainEvents()
	allocated := events[len(events)-1].(*payment.PaymentAllocationRecordedEvent)

	err = f.handler.Handle(ctx, allocated)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CASH")
}
