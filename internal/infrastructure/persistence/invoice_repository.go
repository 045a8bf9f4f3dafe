package persistence

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/invoice"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/eventstore"
	"github.com/google/uuid"
)

// InvoiceRepository is the event-sourced implementation of invoice.Repository
type InvoiceRepository struct {
	store      eventstore.Store
	serializer *eventstore.Serializer
	publisher  shared.EventPublisher
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(store eventstore.Store, serializer *eventstore.Serializer, publisher shared.EventPublisher) *InvoiceRepository {
	return &InvoiceRepository{
		store:      store,
		serializer: serializer,
		publisher:  publisher,
	}
}

// FindByID rehydrates an invoice from its event stream
func (r *InvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	streamID := fmt.Sprintf("%s-%s", invoice.AggregateTypeInvoice, id)
	recs, err := r.store.Read(ctx, streamID, 0)
	if err != nil {
		return nil, err
	}
	events, err := r.serializer.DecodeAll(recs)
	if err != nil {
		return nil, err
	}
	return invoice.ReplayInvoice(events)
}

// Save appends the invoice's pending events to its stream and publishes
// them once durably appended
func (r *InvoiceRepository) Save(ctx context.Context, inv *invoice.Invoice) error {
	return saveAggregate(ctx, r.store, r.publisher, inv, inv.StreamID())
}

// Ensure InvoiceRepository implements the domain contract
var _ invoice.Repository = (*InvoiceRepository)(nil)
