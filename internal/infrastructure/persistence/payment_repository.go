package persistence

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/payment"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/eventstore"
	"github.com/google/uuid"
)

// PaymentRepository is the event-sourced implementation of payment.Repository
type PaymentRepository struct {
	store      eventstore.Store
	serializer *eventstore.Serializer
	publisher  shared.EventPublisher
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(store eventstore.Store, serializer *eventstore.Serializer, publisher shared.EventPublisher) *PaymentRepository {
	return &PaymentRepository{
		store:      store,
		serializer: serializer,
		publisher:  publisher,
	}
}

// FindByID rehydrates a payment from its event stream
func (r *PaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	streamID := fmt.Sprintf("%s-%s", payment.AggregateTypePayment, id)
	recs, err := r.store.Read(ctx, streamID, 0)
	if err != nil {
		return nil, err
	}
	events, err := r.serializer.DecodeAll(recs)
	if err != nil {
		return nil, err
	}
	return payment.ReplayPayment(events)
}

// Save appends the payment's pending events to its stream and publishes
// them once durably appended
func (r *PaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	return saveAggregate(ctx, r.store, r.publisher, p, p.StreamID())
}

// Ensure PaymentRepository implements the domain contract
var _ payment.Repository = (*PaymentRepository)(nil)
