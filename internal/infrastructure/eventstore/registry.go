package eventstore

import (
	"github.com/erp/ledger/internal/domain/invoice"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/payment"
)

// NewDomainSerializer returns a serializer with every domain event type
// registered. Replaying a stream fails fast on an unregistered type, so
// new event types must be added here.
func NewDomainSerializer() *Serializer {
	s := NewSerializer()

	s.Register(ledger.EventTypeJournalEntryCreated, &ledger.JournalEntryCreatedEvent{})
	s.Register(ledger.EventTypeJournalEntryUpdated, &ledger.JournalEntryUpdatedEvent{})
	s.Register(ledger.EventTypeJournalEntryPosted, &ledger.JournalEntryPostedEvent{})
	s.Register(ledger.EventTypeJournalEntryReversed, &ledger.JournalEntryReversedEvent{})

	s.Register(invoice.EventTypeInvoiceCreated, &invoice.InvoiceCreatedEvent{})
	s.Register(invoice.EventTypeInvoiceTaxLinesAttached, &invoice.InvoiceTaxLinesAttachedEvent{})
	s.Register(invoice.EventTypeInvoiceApproved, &invoice.InvoiceApprovedEvent{})
	s.Register(invoice.EventTypeInvoiceSent, &invoice.InvoiceSentEvent{})
	s.Register(invoice.EventTypeInvoiceCancelled, &invoice.InvoiceCancelledEvent{})
	s.Register(invoice.EventTypeInvoiceAllocationApplied, &invoice.InvoiceAllocationAppliedEvent{})

	s.Register(payment.EventTypePaymentRecorded, &payment.PaymentRecordedEvent{})
	s.Register(payment.EventTypePaymentAllocationRecorded, &payment.PaymentAllocationRecordedEvent{})

	return s
}
