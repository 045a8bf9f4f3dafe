package payment

import (
	"context"

	"github.com/google/uuid"
)

// Repository loads and saves payment aggregates. Save appends pending
// events with optimistic concurrency against the committed version.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	Save(ctx context.Context, p *Payment) error
}
