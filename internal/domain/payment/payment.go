package payment

import (
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// AggregateTypePayment is the aggregate kind used in event metadata and
// stream names ("Payment-{id}").
const AggregateTypePayment = "Payment"

// Method represents how a payment was received
type Method string

const (
	MethodCash         Method = "CASH"
	MethodBankTransfer Method = "BANK_TRANSFER"
	MethodCard         Method = "CARD"
	MethodCheck        Method = "CHECK"
)

// IsValid checks if the method is a valid Method
func (m Method) IsValid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodCard, MethodCheck:
		return true
	}
	return false
}

// String returns the string representation of Method
func (m Method) String() string {
	return string(m)
}

// Allocation assigns part of the payment's value to one invoice.
// Allocations are immutable once created: a correction is a new negative
// allocation referencing the original, never an edit.
type Allocation struct {
	ID             uuid.UUID         `json:"id"`
	InvoiceID      uuid.UUID         `json:"invoice_id"`
	Amount         valueobject.Money `json:"amount"`
	CorrectionOfID *uuid.UUID        `json:"correction_of_id,omitempty"`
	AllocatedAt    time.Time         `json:"allocated_at"`
}

// IsCorrection returns true if this allocation reverses part of another
func (a Allocation) IsCorrection() bool {
	return a.CorrectionOfID != nil
}

// Payment is the payment aggregate root. The unallocated remainder stays
// on the record until manually or automatically allocated.
type Payment struct {
	shared.BaseAggregateRoot
	Number           string               `json:"number"`
	Method           Method               `json:"method"`
	CounterpartyID   uuid.UUID            `json:"counterparty_id"`
	Amount           valueobject.Money    `json:"amount"`
	Currency         valueobject.Currency `json:"currency"`
	Allocations      []Allocation         `json:"allocations"`
	ReceivedAt       time.Time            `json:"received_at"`
	allocatedTotal   valueobject.Money
}

// NewPayment records a newly received payment
func NewPayment(number string, method Method, counterpartyID uuid.UUID, amount valueobject.Money) (*Payment, error) {
	if number == "" {
		return nil, shared.NewDomainError("INVALID_PAYMENT_NUMBER", "Payment number cannot be empty")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_METHOD", "Payment method is not valid")
	}
	if counterpartyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_COUNTERPARTY", "Counterparty ID cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}

	p := &Payment{BaseAggregateRoot: shared.NewBaseAggregateRoot()}
	p.raise(NewPaymentRecordedEvent(p.ID, number, method, counterpartyID, amount))
	return p, nil
}

// Allocate assigns part of the payment to an invoice. The payment-side
// invariant is enforced here: the amount must not exceed the unallocated
// remainder. The invoice-side invariant (amount <= invoice balance) is
// enforced by the invoice aggregate.
func (p *Payment) Allocate(invoiceID uuid.UUID, amount valueobject.Money) (*Allocation, error) {
	if invoiceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice ID cannot be empty")
	}
	if amount.Currency() != p.Currency {
		return nil, shared.ErrMixedCurrencies
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Allocation amount must be positive")
	}
	if amount.Amount().GreaterThan(p.Unallocated().Amount()) {
		return nil, shared.NewDomainError("ALLOCATION_ERROR",
			fmt.Sprintf("Allocation %s exceeds unallocated remainder %s", amount, p.Unallocated()))
	}

	event := NewPaymentAllocationRecordedEvent(p, uuid.New(), invoiceID, amount, nil)
	p.raise(event)
	return p.findAllocation(event.AllocationID), nil
}

// CorrectAllocation records a negative allocation reversing part or all of
// an existing allocation. The original is never edited.
func (p *Payment) CorrectAllocation(originalID uuid.UUID, amount valueobject.Money) (*Allocation, error) {
	original := p.findAllocation(originalID)
	if original == nil {
		return nil, shared.ErrNotFound
	}
	if amount.Currency() != p.Currency {
		return nil, shared.ErrMixedCurrencies
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Correction amount must be positive")
	}
	if amount.Amount().GreaterThan(p.allocatedTo(original.InvoiceID).Amount()) {
		return nil, shared.NewDomainError("ALLOCATION_ERROR",
			fmt.Sprintf("Correction %s exceeds amount allocated to invoice", amount))
	}

	event := NewPaymentAllocationRecordedEvent(p, uuid.New(), original.InvoiceID, amount.Negate(), &originalID)
	p.raise(event)
	return p.findAllocation(event.AllocationID), nil
}

// Unallocated returns the remainder of the payment not yet allocated
func (p *Payment) Unallocated() valueobject.Money {
	return p.Amount.MustSubtract(p.allocatedTotal)
}

// AllocatedTotal returns the net sum of all allocations
func (p *Payment) AllocatedTotal() valueobject.Money {
	return p.allocatedTotal
}

// IsExhausted returns true when the whole payment has been allocated
func (p *Payment) IsExhausted() bool {
	return p.Unallocated().IsZero()
}

// allocatedTo returns the net amount currently allocated to one invoice
func (p *Payment) allocatedTo(invoiceID uuid.UUID) valueobject.Money {
	total := valueobject.Zero(p.Currency)
	for _, a := range p.Allocations {
		if a.InvoiceID == invoiceID {
			total = total.MustAdd(a.Amount)
		}
	}
	return total
}

func (p *Payment) findAllocation(id uuid.UUID) *Allocation {
	for i := range p.Allocations {
		if p.Allocations[i].ID == id {
			return &p.Allocations[i]
		}
	}
	return nil
}

// StreamID returns the event stream name for this payment
func (p *Payment) StreamID() string {
	return shared.StreamID(AggregateTypePayment, p)
}

// raise applies an event to local state and queues it for append
func (p *Payment) raise(event shared.DomainEvent) {
	p.apply(event)
	p.AddDomainEvent(event)
}

// apply folds a single event into aggregate state
func (p *Payment) apply(event shared.DomainEvent) {
	switch ev := event.(type) {
	case *PaymentRecordedEvent:
		p.BaseEntity = shared.NewBaseEntityWithID(ev.PaymentID, ev.OccurredAt())
		p.Number = ev.Number
		p.Method = ev.Method
		p.CounterpartyID = ev.CounterpartyID
		p.Amount = ev.Amount
		p.Currency = ev.Amount.Currency()
		p.Allocations = []Allocation{}
		p.ReceivedAt = ev.OccurredAt()
		p.allocatedTotal = valueobject.Zero(p.Currency)
	case *PaymentAllocationRecordedEvent:
		p.Allocations = append(p.Allocations, Allocation{
			ID:             ev.AllocationID,
			InvoiceID:      ev.InvoiceID,
			Amount:         ev.Amount,
			CorrectionOfID: ev.CorrectionOfID,
			AllocatedAt:    ev.OccurredAt(),
		})
		p.allocatedTotal = p.allocatedTotal.MustAdd(ev.Amount)
		p.UpdatedAt = ev.OccurredAt()
	}
}

// ReplayPayment rebuilds a payment from its event stream
func ReplayPayment(events []shared.DomainEvent) (*Payment, error) {
	if len(events) == 0 {
		return nil, shared.ErrNotFound
	}

	p := &Payment{}
	for _, event := range events {
		p.apply(event)
	}
	p.SetVersion(int64(len(events)))
	return p, nil
}
