package persistence

import (
	"context"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/eventstore"
)

// saveAggregate appends an aggregate's pending events at its committed
// version, updates the version, and publishes the events. Publication
// happens only after the append has committed, so a reactor never sees
// an event that is not durable.
func saveAggregate(ctx context.Context, store eventstore.Store, publisher shared.EventPublisher, aggregate shared.AggregateRoot, streamID string) error {
	events := aggregate.GetDomainEvents()
	if len(events) == 0 {
		return nil
	}

	newVersion, err := store.Append(ctx, streamID, aggregate.GetVersion(), events)
	if err != nil {
		return err
	}
	aggregate.SetVersion(newVersion)
	aggregate.ClearDomainEvents()

	if publisher != nil {
		return publisher.Publish(ctx, events...)
	}
	return nil
}
