package invoice

import (
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usd(amount string) valueobject.Money {
	return valueobject.MustMoneyFromString(amount, valueobject.USD)
}

func testItems() []LineItem {
	return []LineItem{
		{
			Description: "Consulting",
			Category:    "SERVICES",
			Quantity:    decimal.NewFromInt(2),
			UnitPrice:   usd("250.00"),
		},
		{
			Description: "License",
			Category:    "SOFTWARE",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   usd("500.00"),
		},
	}
}

func createDraftInvoice(t *testing.T) *Invoice {
	inv, err := NewInvoice("INV-001", uuid.New(), "Acme Corp", valueobject.USD, "DEFAULT",
		time.Now().AddDate(0, 1, 0), testItems())
	require.NoError(t, err)
	return inv
}

// createApprovedInvoice returns an approved invoice with a 10% tax line,
// total 1100.00
func createApprovedInvoice(t *testing.T) *Invoice {
	inv := createDraftInvoice(t)
	taxLines := []tax.Line{
		{RuleKey: "VAT", RuleName: "VAT 10%", PayableAccountID: uuid.New(), Rate: decimal.RequireFromString("0.10"), Amount: usd("100.00")},
	}
	require.NoError(t, inv.AttachTaxLines(taxLines))
	require.NoError(t, inv.Approve())
	return inv
}

func TestStatus_CanAcceptAllocation(t *testing.T) {
	tests := []struct {
		status Status
		accept bool
	}{
		{StatusDraft, false},
		{StatusApproved, true},
		{StatusSent, true},
		{StatusPartiallyPaid, true},
		{StatusPaid, false},
		{StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.accept, tt.status.CanAcceptAllocation())
		})
	}
}

func TestStatus_CanCancel(t *testing.T) {
	assert.True(t, StatusDraft.CanCancel())
	assert.True(t, StatusApproved.CanCancel())
	assert.False(t, StatusSent.CanCancel())
	assert.False(t, StatusPartiallyPaid.CanCancel())
	assert.False(t, StatusPaid.CanCancel())
	assert.False(t, StatusCancelled.CanCancel())
}

func TestNewInvoice(t *testing.T) {
	t.Run("valid invoice starts as draft", func(t *testing.T) {
		inv := createDraftInvoice(t)
		assert.Equal(t, StatusDraft, inv.Status)
		assert.Equal(t, "1000.00", inv.Subtotal().StringFixed(2))
		assert.True(t, inv.TaxTotal().IsZero())
		assert.False(t, inv.TaxEvaluated)
		assert.True(t, inv.AllocatedAmount.IsZero())
	})

	t.Run("no line items rejected", func(t *testing.T) {
		_, err := NewInvoice("INV-001", uuid.New(), "Acme", valueobject.USD, "DEFAULT", time.Now(), nil)
		assert.Error(t, err)
	})

	t.Run("item currency must match invoice currency", func(t *testing.T) {
		items := []LineItem{{
			Description: "Widget",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   valueobject.MustMoneyFromString("10.00", valueobject.EUR),
		}}
		_, err := NewInvoice("INV-001", uuid.New(), "Acme", valueobject.USD, "DEFAULT", time.Now(), items)
		assert.ErrorIs(t, err, shared.ErrMixedCurrencies)
	})

	t.Run("empty number rejected", func(t *testing.T) {
		_, err := NewInvoice("", uuid.New(), "Acme", valueobject.USD, "DEFAULT", time.Now(), testItems())
		assert.Error(t, err)
	})
}

func TestInvoice_Approve(t *testing.T) {
	t.Run("approval requires tax evaluation", func(t *testing.T) {
		inv := createDraftInvoice(t)
		err := inv.Approve()
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "TAX_NOT_EVALUATED", domainErr.Code)
	})

	t.Run("empty tax result still counts as evaluated", func(t *testing.T) {
		inv := createDraftInvoice(t)
		require.NoError(t, inv.AttachTaxLines([]tax.Line{}))
		require.NoError(t, inv.Approve())
		assert.Equal(t, StatusApproved, inv.Status)
		assert.Equal(t, "1000.00", inv.Total().StringFixed(2))
	})

	t.Run("approval fixes total including tax", func(t *testing.T) {
		inv := createApprovedInvoice(t)
		assert.Equal(t, "1100.00", inv.Total().StringFixed(2))
		assert.Equal(t, "1100.00", inv.Balance().StringFixed(2))
	})

	t.Run("re-approval rejected", func(t *testing.T) {
		inv := createApprovedInvoice(t)
		assert.Error(t, inv.Approve())
	})

	t.Run("non-positive line item rejected at approval", func(t *testing.T) {
		items := testItems()
		items[0].Quantity = decimal.Zero
		inv, err := NewInvoice("INV-002", uuid.New(), "Acme", valueobject.USD, "DEFAULT", time.Now(), items)
		require.NoError(t, err)
		require.NoError(t, inv.AttachTaxLines([]tax.Line{}))
		assert.Error(t, inv.Approve())
	})
}

func TestInvoice_AttachTaxLines(t *testing.T) {
	t.Run("re-attachment replaces previous lines", func(t *testing.T) {
		inv := createDraftInvoice(t)
		require.NoError(t, inv.AttachTaxLines([]tax.Line{{RuleKey: "A", Amount: usd("50.00")}}))
		require.NoError(t, inv.AttachTaxLines([]tax.Line{{RuleKey: "B", Amount: usd("70.00")}}))

		require.Len(t, inv.TaxLines, 1)
		assert.Equal(t, "B", inv.TaxLines[0].RuleKey)
		assert.Equal(t, "70.00", inv.TaxTotal().StringFixed(2))
	})

	t.Run("rejected after approval", func(t *testing.T) {
		inv := createApprovedInvoice(t)
		assert.Error(t, inv.AttachTaxLines([]tax.Line{}))
	})

	t.Run("tax line currency must match", func(t *testing.T) {
		inv := createDraftInvoice(t)
		lines := []tax.Line{{RuleKey: "A", Amount: valueobject.MustMoneyFromString("5.00", valueobject.EUR)}}
		assert.ErrorIs(t, inv.AttachTaxLines(lines), shared.ErrMixedCurrencies)
	})
}

func TestInvoice_Send(t *testing.T) {
	t.Run("approved invoice can be sent", func(t *testing.T) {
		inv := createApprovedInvoice(t)
		require.NoError(t, inv.Send())
		assert.Equal(t, StatusSent, inv.Status)
	})

	t.Run("draft cannot be sent", func(t *testing.T) {
		inv := createDraftInvoice(t)
		assert.Error(t, inv.Send())
	})

	t.Run("cannot be sent twice", func(t *testing.T) {
		inv := createApprovedInvoice(t)
		require.NoError(t, inv.Send())
		assert.Error(t, inv.Send())
	})
}

func TestInvoice_Cancel(t *testing.T) {
	t.Run("draft can be cancelled", func(t *testing.T) {
		inv := createDraftInvoice(t)
		require.NoError(t, inv.Cancel("duplicate entry"))
		assert.Equal(t, StatusCancelled, inv.Status)
		assert.Equal(t, "duplicate entry", inv.CancelReason)
	})

	t.Run("approved can be cancelled", func(t *testing.T) {
		inv := createApprovedInvoice(t)
		assert.NoError(t, inv.Cancel("customer withdrew"))
	})

	t.Run("sent cannot be cancelled", func(t *testing.T) {
		inv := createApprovedInvoice(t)
		require.NoError(t, inv.Send())
		assert.Error(t, inv.Cancel("too late"))
	})

	t.Run("reason is required", func(t *testing.T) {
		inv := createDraftInvoice(t)
		assert.Error(t, inv.Cancel(""))
	})

	t.Run("cancelled invoice rejects allocations", func(t *testing.T) {
		inv := createApprovedInvoice(t)
		require.NoError(t, inv.Cancel("withdrawn"))
		err := inv.ApplyAllocation(uuid.New(), uuid.New(), usd("100.00"))
		assert.Error(t, err)
	})
}

func TestInvoice_ApplyAllocation(t *testing.T) {
	t.Run("partial allocation", func(t *testing.T) {
		inv := createApprovedInvoice(t)
		require.NoError(t, inv.ApplyAllocation(uuid.New(), uuid.New(), usd("400.00")))

		assert.Equal(t, StatusPartiallyPaid, inv.Status)
		assert.Equal(t, "700.00", inv.Balance().StringFixed(2))
	})

	t.Run("full allocation marks invoice paid", func(t *testing.T) {
		inv := createApprovedInvoice(t)
		require.NoError(t, inv.ApplyAllocation(uuid.New(), uuid.New(), usd("1100.00")))

		assert.Equal(t, StatusPaid, inv.Status)
		assert.True(t, inv.Balance().IsZero())
	})

	t.Run("allocation beyond balance rejected", func(t *testing.T) {
		inv := createApprovedInvoice(t)
		err := inv.ApplyAllocation(uuid.New(), uuid.New(), usd("1100.01"))
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "ALLOCATION_ERROR", domainErr.Code)
	})

	t.Run("zero amount rejected", func(t *testing.T) {
		inv := createApprovedInvoice(t)
		assert.Error(t, inv.ApplyAllocation(uuid.New(), uuid.New(), usd("0")))
	})

	t.Run("same allocation applied twice is detected", func(t *testing.T) {
		inv := createApprovedInvoice(t)
		allocationID := uuid.New()
		require.NoError(t, inv.ApplyAllocation(allocationID, uuid.New(), usd("400.00")))

		err := inv.ApplyAllocation(allocationID, uuid.New(), usd("400.00"))
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
		assert.Equal(t, "700.00", inv.Balance().StringFixed(2))
	})

	t.Run("paid invoice rejects further allocations", func(t *testing.T) {
		inv := createApprovedInvoice(t)
		require.NoError(t, inv.ApplyAllocation(uuid.New(), uuid.New(), usd("1100.00")))
		assert.Error(t, inv.ApplyAllocation(uuid.New(), uuid.New(), usd("1.00")))
	})

	t.Run("currency mismatch rejected", func(t *testing.T) {
		inv := createApprovedInvoice(t)
		err := inv.ApplyAllocation(uuid.New(), uuid.New(), valueobject.MustMoneyFromString("10.00", valueobject.EUR))
		assert.ErrorIs(t, err, shared.ErrMixedCurrencies)
	})
}

func TestInvoice_ApplyAllocation_Corrections(t *testing.T) {
	t.Run("correction reopens a paid invoice", func(t *testing.T) {
		inv := createApprovedInvoice(t)
		require.NoError(t, inv.ApplyAllocation(uuid.New(), uuid.New(), usd("1100.00")))
		require.Equal(t, StatusPaid, inv.Status)

		require.NoError(t, inv.ApplyAllocation(uuid.New(), uuid.New(), usd("-200.00")))
		assert.Equal(t, StatusPartiallyPaid, inv.Status)
		assert.Equal(t, "200.00", inv.Balance().StringFixed(2))
	})

	t.Run("full correction restores pre-payment status", func(t *testing.T) {
		inv := createApprovedInvoice(t)
		require.NoError(t, inv.Send())
		require.NoError(t, inv.ApplyAllocation(uuid.New(), uuid.New(), usd("500.00")))
		require.Equal(t, StatusPartiallyPaid, inv.Status)

		require.NoError(t, inv.ApplyAllocation(uuid.New(), uuid.New(), usd("-500.00")))
		assert.Equal(t, StatusSent, inv.Status)
		assert.Equal(t, "1100.00", inv.Balance().StringFixed(2))
	})

	t.Run("correction beyond allocated amount rejected", func(t *testing.T) {
		inv := createApprovedInvoice(t)
		require.NoError(t, inv.ApplyAllocation(uuid.New(), uuid.New(), usd("300.00")))
		assert.Error(t, inv.ApplyAllocation(uuid.New(), uuid.New(), usd("-300.01")))
	})

	t.Run("correction on untouched invoice rejected", func(t *testing.T) {
		inv := createApprovedInvoice(t)
		assert.Error(t, inv.ApplyAllocation(uuid.New(), uuid.New(), usd("-100.00")))
	})
}

func TestReplayInvoice(t *testing.T) {
	t.Run("replay reproduces state", func(t *testing.T) {
		inv := createApprovedInvoice(t)
		require.NoError(t, inv.Send())
		allocationID := uuid.New()
		require.NoError(t, inv.ApplyAllocation(allocationID, uuid.New(), usd("600.00")))

		replayed, err := ReplayInvoice(inv.GetDomainEvents())
		require.NoError(t, err)

		assert.Equal(t, inv.ID, replayed.ID)
		assert.Equal(t, StatusPartiallyPaid, replayed.Status)
		assert.Equal(t, "500.00", replayed.Balance().StringFixed(2))
		assert.Equal(t, int64(len(inv.GetDomainEvents())), replayed.GetVersion())

		// The duplicate-allocation guard survives replay
		assert.ErrorIs(t, replayed.ApplyAllocation(allocationID, uuid.New(), usd("100.00")), shared.ErrAlreadyExists)
	})

	t.Run("empty stream is not found", func(t *testing.T) {
		_, err := ReplayInvoice(nil)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
