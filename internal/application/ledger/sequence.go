package ledger

import (
	"context"
	"sync"
)

// SequenceAllocator hands out the monotonically increasing sequence
// numbers assigned to entries at post time
type SequenceAllocator interface {
	Next(ctx context.Context) (int64, error)
}

// MemorySequenceAllocator is a process-local sequence allocator.
// Seed it with the highest sequence already posted when restarting
// against a durable event store.
type MemorySequenceAllocator struct {
	mu   sync.Mutex
	last int64
}

// NewMemorySequenceAllocator creates an allocator that continues after last
func NewMemorySequenceAllocator(last int64) *MemorySequenceAllocator {
	return &MemorySequenceAllocator{last: last}
}

// Next returns the next sequence number
func (a *MemorySequenceAllocator) Next(ctx context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last++
	return a.last, nil
}

// Ensure MemorySequenceAllocator implements SequenceAllocator
var _ SequenceAllocator = (*MemorySequenceAllocator)(nil)
