package pipeline

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of tasks running at once. It wraps a weighted
// semaphore whose waiters are served roughly in arrival order, so no task
// starves behind later arrivals.
type Gate struct {
	sem *semaphore.Weighted
}

// NewGate returns a gate admitting at most capacity holders. A capacity
// below one is clamped to one so a tripped rate-limit flag can never halve
// the pipeline to a standstill.
func NewGate(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{sem: semaphore.NewWeighted(int64(capacity))}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// Release returns a slot. Every successful Acquire must be paired with
// exactly one Release on every exit path.
func (g *Gate) Release() {
	g.sem.Release(1)
}
