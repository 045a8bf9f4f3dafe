package invoice

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/domain/tax"
	"github.com/google/uuid"
)

// Event type names for the Invoice aggregate
const (
	EventTypeInvoiceCreated           = "InvoiceCreated"
	EventTypeInvoiceTaxLinesAttached  = "InvoiceTaxLinesAttached"
	EventTypeInvoiceApproved          = "InvoiceApproved"
	EventTypeInvoiceSent              = "InvoiceSent"
	EventTypeInvoiceCancelled         = "InvoiceCancelled"
	EventTypeInvoiceAllocationApplied = "InvoiceAllocationApplied"
)

// InvoiceCreatedEvent is raised when a draft invoice is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceID        uuid.UUID            `json:"invoice_id"`
	Number           string               `json:"number"`
	CounterpartyID   uuid.UUID            `json:"counterparty_id"`
	CounterpartyName string               `json:"counterparty_name"`
	Currency         valueobject.Currency `json:"currency"`
	Jurisdiction     string               `json:"jurisdiction"`
	DueDate          time.Time            `json:"due_date"`
	LineItems        []LineItem           `json:"line_items"`
}

// EventType returns the event type name
func (e *InvoiceCreatedEvent) EventType() string {
	return EventTypeInvoiceCreated
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(
	invoiceID uuid.UUID,
	number string,
	counterpartyID uuid.UUID,
	counterpartyName string,
	currency valueobject.Currency,
	jurisdiction string,
	dueDate time.Time,
	items []LineItem,
) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeInvoiceCreated, AggregateTypeInvoice, invoiceID),
		InvoiceID:        invoiceID,
		Number:           number,
		CounterpartyID:   counterpartyID,
		CounterpartyName: counterpartyName,
		Currency:         currency,
		Jurisdiction:     jurisdiction,
		DueDate:          dueDate,
		LineItems:        items,
	}
}

// InvoiceTaxLinesAttachedEvent is raised when the tax evaluator's output
// is recorded on a draft invoice
type InvoiceTaxLinesAttachedEvent struct {
	shared.BaseDomainEvent
	InvoiceID uuid.UUID  `json:"invoice_id"`
	TaxLines  []tax.Line `json:"tax_lines"`
}

// EventType returns the event type name
func (e *InvoiceTaxLinesAttachedEvent) EventType() string {
	return EventTypeInvoiceTaxLinesAttached
}

// NewInvoiceTaxLinesAttachedEvent creates a new InvoiceTaxLinesAttachedEvent
func NewInvoiceTaxLinesAttachedEvent(invoiceID uuid.UUID, lines []tax.Line) *InvoiceTaxLinesAttachedEvent {
	return &InvoiceTaxLinesAttachedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceTaxLinesAttached, AggregateTypeInvoice, invoiceID),
		InvoiceID:       invoiceID,
		TaxLines:        lines,
	}
}

// InvoiceApprovedEvent is raised when an invoice is approved. It carries
// the amounts the journal reactor needs to post the receivable entry
// without loading the aggregate: subtotal, tax lines and total.
type InvoiceApprovedEvent struct {
	shared.BaseDomainEvent
	InvoiceID        uuid.UUID            `json:"invoice_id"`
	Number           string               `json:"number"`
	CounterpartyID   uuid.UUID            `json:"counterparty_id"`
	CounterpartyName string               `json:"counterparty_name"`
	Currency         valueobject.Currency `json:"currency"`
	Subtotal         valueobject.Money    `json:"subtotal"`
	TaxLines         []tax.Line           `json:"tax_lines"`
	Total            valueobject.Money    `json:"total"`
	DueDate          time.Time            `json:"due_date"`
}

// EventType returns the event type name
func (e *InvoiceApprovedEvent) EventType() string {
	return EventTypeInvoiceApproved
}

// NewInvoiceApprovedEvent creates a new InvoiceApprovedEvent
func NewInvoiceApprovedEvent(inv *Invoice) *InvoiceApprovedEvent {
	return &InvoiceApprovedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeInvoiceApproved, AggregateTypeInvoice, inv.ID),
		InvoiceID:        inv.ID,
		Number:           inv.Number,
		CounterpartyID:   inv.CounterpartyID,
		CounterpartyName: inv.CounterpartyName,
		Currency:         inv.Currency,
		Subtotal:         inv.Subtotal(),
		TaxLines:         inv.TaxLines,
		Total:            inv.Total(),
		DueDate:          inv.DueDate,
	}
}

// InvoiceSentEvent is raised when an approved invoice is sent
type InvoiceSentEvent struct {
	shared.BaseDomainEvent
	InvoiceID uuid.UUID `json:"invoice_id"`
	Number    string    `json:"number"`
}

// EventType returns the event type name
func (e *InvoiceSentEvent) EventType() string {
	return EventTypeInvoiceSent
}

// NewInvoiceSentEvent creates a new InvoiceSentEvent
func NewInvoiceSentEvent(invoiceID uuid.UUID, number string) *InvoiceSentEvent {
	return &InvoiceSentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceSent, AggregateTypeInvoice, invoiceID),
		InvoiceID:       invoiceID,
		Number:          number,
	}
}

// InvoiceCancelledEvent is raised when a Draft or Approved invoice is cancelled
type InvoiceCancelledEvent struct {
	shared.BaseDomainEvent
	InvoiceID uuid.UUID `json:"invoice_id"`
	Number    string    `json:"number"`
	Reason    string    `json:"reason"`
}

// EventType returns the event type name
func (e *InvoiceCancelledEvent) EventType() string {
	return EventTypeInvoiceCancelled
}

// NewInvoiceCancelledEvent creates a new InvoiceCancelledEvent
func NewInvoiceCancelledEvent(invoiceID uuid.UUID, number, reason string) *InvoiceCancelledEvent {
	return &InvoiceCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCancelled, AggregateTypeInvoice, invoiceID),
		InvoiceID:       invoiceID,
		Number:          number,
		Reason:          reason,
	}
}

// InvoiceAllocationAppliedEvent is raised when a payment allocation
// (or a negative correction) is applied to the invoice
type InvoiceAllocationAppliedEvent struct {
	shared.BaseDomainEvent
	InvoiceID    uuid.UUID         `json:"invoice_id"`
	Number       string            `json:"number"`
	AllocationID uuid.UUID         `json:"allocation_id"`
	PaymentID    uuid.UUID         `json:"payment_id"`
	Amount       valueobject.Money `json:"amount"`
	NewBalance   valueobject.Money `json:"new_balance"`
	NewStatus    Status            `json:"new_status"`
}

// EventType returns the event type name
func (e *InvoiceAllocationAppliedEvent) EventType() string {
	return EventTypeInvoiceAllocationApplied
}

// NewInvoiceAllocationAppliedEvent creates a new InvoiceAllocationAppliedEvent.
// NewBalance and NewStatus describe the invoice after the allocation; they are
// computed here, before apply runs, from the current state plus the amount.
func NewInvoiceAllocationAppliedEvent(inv *Invoice, allocationID, paymentID uuid.UUID, amount valueobject.Money) *InvoiceAllocationAppliedEvent {
	newBalance := inv.Balance().MustSubtract(amount)
	newAllocated := inv.AllocatedAmount.MustAdd(amount)

	newStatus := inv.Status
	switch {
	case newBalance.IsZero():
		newStatus = StatusPaid
	case newAllocated.IsPositive():
		newStatus = StatusPartiallyPaid
	case inv.prePaymentStatus != "":
		// Allocations fully corrected away
		newStatus = inv.prePaymentStatus
	}

	return &InvoiceAllocationAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceAllocationApplied, AggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		Number:          inv.Number,
		AllocationID:    allocationID,
		PaymentID:       paymentID,
		Amount:          amount,
		NewBalance:      newBalance,
		NewStatus:       newStatus,
	}
}
