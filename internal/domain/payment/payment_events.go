package payment

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Event type names for the Payment aggregate
const (
	EventTypePaymentRecorded           = "PaymentRecorded"
	EventTypePaymentAllocationRecorded = "PaymentAllocationRecorded"
)

// PaymentRecordedEvent is raised when a payment is received
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	PaymentID      uuid.UUID         `json:"payment_id"`
	Number         string            `json:"number"`
	Method         Method            `json:"method"`
	CounterpartyID uuid.UUID         `json:"counterparty_id"`
	Amount         valueobject.Money `json:"amount"`
}

// EventType returns the event type name
func (e *PaymentRecordedEvent) EventType() string {
	return EventTypePaymentRecorded
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(paymentID uuid.UUID, number string, method Method, counterpartyID uuid.UUID, amount valueobject.Money) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, AggregateTypePayment, paymentID),
		PaymentID:       paymentID,
		Number:          number,
		Method:          method,
		CounterpartyID:  counterpartyID,
		Amount:          amount,
	}
}

// PaymentAllocationRecordedEvent is raised when part of the payment is
// allocated to an invoice. Negative amounts are corrections and carry
// the ID of the allocation they reverse.
type PaymentAllocationRecordedEvent struct {
	shared.BaseDomainEvent
	PaymentID      uuid.UUID         `json:"payment_id"`
	PaymentNumber  string            `json:"payment_number"`
	Method         Method            `json:"method"`
	AllocationID   uuid.UUID         `json:"allocation_id"`
	InvoiceID      uuid.UUID         `json:"invoice_id"`
	Amount         valueobject.Money `json:"amount"`
	CorrectionOfID *uuid.UUID        `json:"correction_of_id,omitempty"`
	Unallocated    valueobject.Money `json:"unallocated"` // Remainder after this allocation
}

// EventType returns the event type name
func (e *PaymentAllocationRecordedEvent) EventType() string {
	return EventTypePaymentAllocationRecorded
}

// NewPaymentAllocationRecordedEvent creates a new PaymentAllocationRecordedEvent
func NewPaymentAllocationRecordedEvent(p *Payment, allocationID, invoiceID uuid.UUID, amount valueobject.Money, correctionOfID *uuid.UUID) *PaymentAllocationRecordedEvent {
	return &PaymentAllocationRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentAllocationRecorded, AggregateTypePayment, p.ID),
		PaymentID:       p.ID,
		PaymentNumber:   p.Number,
		Method:          p.Method,
		AllocationID:    allocationID,
		InvoiceID:       invoiceID,
		Amount:          amount,
		CorrectionOfID:  correctionOfID,
		Unallocated:     p.Unallocated().MustSubtract(amount),
	}
}
