package projection

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/eventstore"
	"go.uber.org/zap"
)

// Projection is a read model fed by the projector. Apply must be
// idempotent: the projector delivers at least once, and each projection
// skips events at or below its own position.
type Projection interface {
	// Name identifies the projection in logs
	Name() string

	// Position returns the global position of the last folded event
	Position() int64

	// Apply folds one event at the given global position
	Apply(ctx context.Context, event shared.DomainEvent, position int64) error

	// Reset discards all state so the projection can rebuild from genesis
	Reset()
}

// Projector is the single consumer driving the reporting read models.
// It tails the global event feed in commit order, folds each event into
// every registered projection and checkpoints its position durably.
// Replaying the same log always produces the same read models.
type Projector struct {
	name        string
	store       eventstore.Store
	checkpoints eventstore.CheckpointStore
	serializer  *eventstore.Serializer
	projections []Projection
	batchSize   int
	pollEvery   time.Duration
	logger      *zap.Logger
}

// ProjectorOption is a functional option for Projector
type ProjectorOption func(*Projector)

// WithBatchSize sets how many events are read per batch
func WithBatchSize(n int) ProjectorOption {
	return func(p *Projector) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithPollInterval sets how long the projector sleeps when caught up
func WithPollInterval(d time.Duration) ProjectorOption {
	return func(p *Projector) {
		if d > 0 {
			p.pollEvery = d
		}
	}
}

// NewProjector creates a projector over the given store and checkpoint store
func NewProjector(
	name string,
	store eventstore.Store,
	checkpoints eventstore.CheckpointStore,
	serializer *eventstore.Serializer,
	logger *zap.Logger,
	opts ...ProjectorOption,
) *Projector {
	p := &Projector{
		name:        name,
		store:       store,
		checkpoints: checkpoints,
		serializer:  serializer,
		batchSize:   100,
		pollEvery:   time.Second,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register adds a projection to the projector
func (p *Projector) Register(projection Projection) {
	p.projections = append(p.projections, projection)
}

// CatchUp processes all events recorded after the checkpoint and returns
// how many were processed. The checkpoint is saved after each batch, so
// a crash between apply and save replays a suffix; the projections'
// position checks make that replay a no-op.
func (p *Projector) CatchUp(ctx context.Context) (int, error) {
	position, err := p.checkpoints.Load(ctx, p.name)
	if err != nil {
		return 0, err
	}

	processed := 0
	for {
		recs, err := p.store.ReadAll(ctx, position, p.batchSize)
		if err != nil {
			return processed, err
		}
		if len(recs) == 0 {
			return processed, nil
		}

		for _, rec := range recs {
			event, err := p.serializer.DecodeRecorded(rec)
			if err != nil {
				return processed, err
			}
			for _, projection := range p.projections {
				if err := projection.Apply(ctx, event, rec.GlobalPosition); err != nil {
					p.logger.Error("projection failed to fold event",
						zap.String("projection", projection.Name()),
						zap.String("event_type", rec.Type),
						zap.Int64("position", rec.GlobalPosition),
						zap.Error(err),
					)
					return processed, err
				}
			}
			position = rec.GlobalPosition
			processed++
		}

		if err := p.checkpoints.Save(ctx, p.name, position); err != nil {
			return processed, err
		}
	}
}

// Run tails the event feed until the context is cancelled
func (p *Projector) Run(ctx context.Context) error {
	p.logger.Info("projector started",
		zap.String("projector", p.name),
		zap.Int("projections", len(p.projections)),
	)

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		if _, err := p.CatchUp(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			p.logger.Info("projector stopped", zap.String("projector", p.name))
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Rebuild discards all projection state and the checkpoint, then refolds
// the entire log from genesis. The result is equivalent to having
// consumed the log in one pass.
func (p *Projector) Rebuild(ctx context.Context) error {
	for _, projection := range p.projections {
		projection.Reset()
	}
	if err := p.checkpoints.Save(ctx, p.name, 0); err != nil {
		return err
	}

	n, err := p.CatchUp(ctx)
	if err != nil {
		return err
	}
	p.logger.Info("projector rebuilt from genesis",
		zap.String("projector", p.name),
		zap.Int("events", n),
	)
	return nil
}
