package invoice

import (
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeInvoice is the aggregate kind used in event metadata and
// stream names ("Invoice-{id}").
const AggregateTypeInvoice = "Invoice"

// Status represents the lifecycle status of an invoice
type Status string

const (
	StatusDraft         Status = "DRAFT"
	StatusApproved      Status = "APPROVED"
	StatusSent          Status = "SENT"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusPaid          Status = "PAID"
	StatusCancelled     Status = "CANCELLED" // Terminal; reachable only from Draft or Approved
)

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusApproved, StatusSent, StatusPartiallyPaid, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// CanAcceptAllocation returns true if payments can be allocated in this status
func (s Status) CanAcceptAllocation() bool {
	switch s {
	case StatusApproved, StatusSent, StatusPartiallyPaid:
		return true
	}
	return false
}

// CanCancel returns true if the invoice may be cancelled from this status.
// Once an invoice is Sent or has received money, cancellation is rejected.
func (s Status) CanCancel() bool {
	return s == StatusDraft || s == StatusApproved
}

// LineItem is a billed line on an invoice
type LineItem struct {
	Description string            `json:"description"`
	Category    string            `json:"category"` // Used by tax exemption predicates
	Quantity    decimal.Decimal   `json:"quantity"`
	UnitPrice   valueobject.Money `json:"unit_price"`
}

// Amount returns quantity * unit price
func (l LineItem) Amount() valueobject.Money {
	return l.UnitPrice.Multiply(l.Quantity)
}

// IsPositive returns true if both quantity and unit price are positive
func (l LineItem) IsPositive() bool {
	return l.Quantity.IsPositive() && l.UnitPrice.IsPositive()
}

// TaxableItem converts the line item to the tax evaluator's input shape
func (l LineItem) TaxableItem() tax.TaxableItem {
	return tax.TaxableItem{
		Description: l.Description,
		Category:    l.Category,
		Amount:      l.Amount(),
	}
}

// Invoice is the invoice lifecycle aggregate root. Balance is always
// derived: total minus the sum of applied allocations, never stored as
// ground truth anywhere else.
type Invoice struct {
	shared.BaseAggregateRoot
	Number           string               `json:"number"`
	CounterpartyID   uuid.UUID            `json:"counterparty_id"`
	CounterpartyName string               `json:"counterparty_name"`
	Currency         valueobject.Currency `json:"currency"`
	Jurisdiction     string               `json:"jurisdiction"`
	DueDate          time.Time            `json:"due_date"`
	LineItems        []LineItem           `json:"line_items"`
	TaxLines         []tax.Line           `json:"tax_lines"`
	TaxEvaluated     bool                 `json:"tax_evaluated"` // True once the tax evaluator has run, even if it produced no lines
	Status           Status               `json:"status"`
	AllocatedAmount  valueobject.Money    `json:"allocated_amount"`
	CancelReason     string               `json:"cancel_reason,omitempty"`

	// prePaymentStatus remembers whether the invoice was Approved or Sent
	// before the first allocation, so a full correction can restore it.
	prePaymentStatus Status

	// appliedAllocations guards against the same allocation being applied
	// twice when a reactor retries after a partial failure
	appliedAllocations map[uuid.UUID]bool
}

// NewInvoice creates a new draft invoice
func NewInvoice(
	number string,
	counterpartyID uuid.UUID,
	counterpartyName string,
	currency valueobject.Currency,
	jurisdiction string,
	dueDate time.Time,
	items []LineItem,
) (*Invoice, error) {
	if number == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if counterpartyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_COUNTERPARTY", "Counterparty ID cannot be empty")
	}
	if counterpartyName == "" {
		return nil, shared.NewDomainError("INVALID_COUNTERPARTY_NAME", "Counterparty name cannot be empty")
	}
	if currency == "" {
		return nil, shared.NewDomainError("INVALID_CURRENCY", "Currency cannot be empty")
	}
	if len(items) == 0 {
		return nil, shared.NewDomainError("NO_LINE_ITEMS", "Invoice requires at least one line item")
	}
	for _, item := range items {
		if item.UnitPrice.Currency() != currency {
			return nil, shared.ErrMixedCurrencies
		}
	}

	inv := &Invoice{BaseAggregateRoot: shared.NewBaseAggregateRoot()}
	inv.raise(NewInvoiceCreatedEvent(inv.ID, number, counterpartyID, counterpartyName, currency, jurisdiction, dueDate, items))
	return inv, nil
}

// AttachTaxLines records the tax evaluator's output on a draft invoice.
// Re-attaching replaces previous lines; the evaluator is deterministic so
// the last evaluation before approval wins.
func (i *Invoice) AttachTaxLines(lines []tax.Line) error {
	if i.Status != StatusDraft {
		return shared.NewDomainError("STATE_ERROR",
			fmt.Sprintf("Cannot attach tax lines to invoice in %s status", i.Status))
	}
	for _, line := range lines {
		if line.Amount.Currency() != i.Currency {
			return shared.ErrMixedCurrencies
		}
	}

	i.raise(NewInvoiceTaxLinesAttachedEvent(i.ID, lines))
	return nil
}

// Approve transitions the invoice from Draft to Approved. The tax policy
// evaluator must have run, and every line item must be positive.
func (i *Invoice) Approve() error {
	if i.Status != StatusDraft {
		return shared.NewDomainError("STATE_ERROR",
			fmt.Sprintf("Cannot approve invoice in %s status", i.Status))
	}
	if !i.TaxEvaluated {
		return shared.NewDomainError("TAX_NOT_EVALUATED", "Tax lines must be attached before approval")
	}
	for _, item := range i.LineItems {
		if !item.IsPositive() {
			return shared.NewDomainError("INVALID_LINE_ITEM",
				fmt.Sprintf("Line item %q has non-positive quantity or amount", item.Description))
		}
	}

	i.raise(NewInvoiceApprovedEvent(i))
	return nil
}

// Send marks an approved invoice as sent to the counterparty.
// A pure status transition with no financial side effect.
func (i *Invoice) Send() error {
	if i.Status != StatusApproved {
		return shared.NewDomainError("STATE_ERROR",
			fmt.Sprintf("Cannot send invoice in %s status", i.Status))
	}

	i.raise(NewInvoiceSentEvent(i.ID, i.Number))
	return nil
}

// Cancel cancels a Draft or Approved invoice. Sent or partially paid
// invoices cannot be cancelled: money has already moved.
func (i *Invoice) Cancel(reason string) error {
	if !i.Status.CanCancel() {
		return shared.NewDomainError("STATE_ERROR",
			fmt.Sprintf("Cannot cancel invoice in %s status", i.Status))
	}
	if !i.AllocatedAmount.IsZero() {
		return shared.NewDomainError("STATE_ERROR", "Cannot cancel invoice with existing allocations")
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Cancel reason is required")
	}

	i.raise(NewInvoiceCancelledEvent(i.ID, i.Number, reason))
	return nil
}

// ApplyAllocation applies a payment allocation to the invoice. A positive
// amount must not exceed the current balance; a negative amount is a
// correction and must not exceed the amount already allocated.
func (i *Invoice) ApplyAllocation(allocationID, paymentID uuid.UUID, amount valueobject.Money) error {
	if i.appliedAllocations[allocationID] {
		return shared.ErrAlreadyExists
	}
	if amount.Currency() != i.Currency {
		return shared.ErrMixedCurrencies
	}
	if amount.IsZero() {
		return shared.NewDomainError("INVALID_AMOUNT", "Allocation amount cannot be zero")
	}

	if amount.IsPositive() {
		if !i.Status.CanAcceptAllocation() {
			return shared.NewDomainError("STATE_ERROR",
				fmt.Sprintf("Cannot allocate to invoice in %s status", i.Status))
		}
		if amount.Amount().GreaterThan(i.Balance().Amount()) {
			return shared.NewDomainError("ALLOCATION_ERROR",
				fmt.Sprintf("Allocation %s exceeds invoice balance %s", amount, i.Balance()))
		}
	} else {
		if i.Status != StatusPartiallyPaid && i.Status != StatusPaid {
			return shared.NewDomainError("STATE_ERROR",
				fmt.Sprintf("Cannot correct allocations on invoice in %s status", i.Status))
		}
		if amount.Abs().Amount().GreaterThan(i.AllocatedAmount.Amount()) {
			return shared.NewDomainError("ALLOCATION_ERROR",
				fmt.Sprintf("Correction %s exceeds allocated amount %s", amount.Abs(), i.AllocatedAmount))
		}
	}

	i.raise(NewInvoiceAllocationAppliedEvent(i, allocationID, paymentID, amount))
	return nil
}

// Subtotal returns the sum of all line item amounts
func (i *Invoice) Subtotal() valueobject.Money {
	total := valueobject.Zero(i.Currency)
	for _, item := range i.LineItems {
		total = total.MustAdd(item.Amount())
	}
	return total
}

// TaxTotal returns the sum of all tax line amounts
func (i *Invoice) TaxTotal() valueobject.Money {
	return tax.Total(i.TaxLines, i.Currency)
}

// Total returns subtotal plus tax
func (i *Invoice) Total() valueobject.Money {
	return i.Subtotal().MustAdd(i.TaxTotal())
}

// Balance returns total minus the sum of applied allocations
func (i *Invoice) Balance() valueobject.Money {
	return i.Total().MustSubtract(i.AllocatedAmount)
}

// TaxableItems returns the line items in the tax evaluator's input shape
func (i *Invoice) TaxableItems() []tax.TaxableItem {
	items := make([]tax.TaxableItem, len(i.LineItems))
	for idx, item := range i.LineItems {
		items[idx] = item.TaxableItem()
	}
	return items
}

// StreamID returns the event stream name for this invoice
func (i *Invoice) StreamID() string {
	return shared.StreamID(AggregateTypeInvoice, i)
}

// raise applies an event to local state and queues it for append
func (i *Invoice) raise(event shared.DomainEvent) {
	i.apply(event)
	i.AddDomainEvent(event)
}

// apply folds a single event into aggregate state
func (i *Invoice) apply(event shared.DomainEvent) {
	switch ev := event.(type) {
	case *InvoiceCreatedEvent:
		i.BaseEntity = shared.NewBaseEntityWithID(ev.InvoiceID, ev.OccurredAt())
		i.Number = ev.Number
		i.CounterpartyID = ev.CounterpartyID
		i.CounterpartyName = ev.CounterpartyName
		i.Currency = ev.Currency
		i.Jurisdiction = ev.Jurisdiction
		i.DueDate = ev.DueDate
		i.LineItems = ev.LineItems
		i.TaxLines = []tax.Line{}
		i.Status = StatusDraft
		i.AllocatedAmount = valueobject.Zero(ev.Currency)
		i.appliedAllocations = make(map[uuid.UUID]bool)
	case *InvoiceTaxLinesAttachedEvent:
		i.TaxLines = ev.TaxLines
		i.TaxEvaluated = true
		i.UpdatedAt = ev.OccurredAt()
	case *InvoiceApprovedEvent:
		i.Status = StatusApproved
		i.UpdatedAt = ev.OccurredAt()
	case *InvoiceSentEvent:
		i.Status = StatusSent
		i.UpdatedAt = ev.OccurredAt()
	case *InvoiceCancelledEvent:
		i.Status = StatusCancelled
		i.CancelReason = ev.Reason
		i.UpdatedAt = ev.OccurredAt()
	case *InvoiceAllocationAppliedEvent:
		if i.AllocatedAmount.IsZero() {
			i.prePaymentStatus = i.Status
		}
		i.appliedAllocations[ev.AllocationID] = true
		i.AllocatedAmount = i.AllocatedAmount.MustAdd(ev.Amount)
		switch {
		case i.Balance().IsZero():
			i.Status = StatusPaid
		case i.AllocatedAmount.IsPositive():
			i.Status = StatusPartiallyPaid
		default:
			// Allocations fully corrected away; restore the pre-payment status
			i.Status = i.prePaymentStatus
		}
		i.UpdatedAt = ev.OccurredAt()
	}
}

// ReplayInvoice rebuilds an invoice from its event stream
func ReplayInvoice(events []shared.DomainEvent) (*Invoice, error) {
	if len(events) == 0 {
		return nil, shared.ErrNotFound
	}

	inv := &Invoice{}
	for _, event := range events {
		inv.apply(event)
	}
	inv.SetVersion(int64(len(events)))
	return inv, nil
}
