package invoice

import (
	"context"

	"github.com/google/uuid"
)

// Repository loads and saves invoice aggregates. Save appends pending
// events with optimistic concurrency against the committed version.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	Save(ctx context.Context, inv *Invoice) error
}
