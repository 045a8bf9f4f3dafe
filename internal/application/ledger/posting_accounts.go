package ledger

import (
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// PostingAccounts binds the reactors' journal entries to concrete accounts
// in the chart. Tax payable accounts are not listed here; they travel on
// each tax line from jurisdiction configuration.
type PostingAccounts struct {
	// Receivable is the asset account debited when an invoice is approved
	// and credited when a payment allocation settles part of it
	Receivable uuid.UUID

	// Revenue is the account credited with the invoice subtotal on approval
	Revenue uuid.UUID

	// Settlement maps a payment method (e.g. "CASH", "BANK_TRANSFER") to
	// the asset account debited when an allocation is applied
	Settlement map[string]uuid.UUID
}

// SettlementAccount returns the asset account for a payment method
func (p PostingAccounts) SettlementAccount(method string) (uuid.UUID, error) {
	id, ok := p.Settlement[method]
	if !ok {
		return uuid.Nil, shared.NewDomainError("UNMAPPED_METHOD",
			fmt.Sprintf("No settlement account bound for payment method %s", method))
	}
	return id, nil
}
