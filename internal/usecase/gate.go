package usecase

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency is the number of fetches allowed in flight at once.
const DefaultConcurrency = 5

// Gate bounds the number of concurrently running fetches.
// Acquire and Release must be safe for concurrent use.
type Gate interface {
	Acquire(ctx context.Context) error
	Release()
}

type weightedGate struct {
	sem *semaphore.Weighted
}

// NewGate returns a Gate admitting at most limit holders. A limit below one
// falls back to DefaultConcurrency.
func NewGate(limit int) Gate {
	if limit < 1 {
		limit = DefaultConcurrency
	}
	return &weightedGate{sem: semaphore.NewWeighted(int64(limit))}
}

func (g *weightedGate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

func (g *weightedGate) Release() {
	g.sem.Release(1)
}
