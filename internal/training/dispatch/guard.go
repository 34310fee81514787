// Package dispatch ensures at most one driver executes a given run.
package dispatch

import (
	"context"
	"errors"
	"sync"

	id "fedlearn/pkg/domain"
)

// ErrInFlight is returned when another driver already holds the run.
var ErrInFlight = errors.New("run is already being dispatched")

// Release gives a held run back. It is safe to call more than once.
type Release func()

// Guard hands out exclusive ownership of a run ID.
type Guard interface {
	Acquire(ctx context.Context, runID id.RunID) (Release, error)
}

// MemoryGuard guards runs within one process.
type MemoryGuard struct {
	held sync.Map
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{}
}

func (g *MemoryGuard) Acquire(_ context.Context, runID id.RunID) (Release, error) {
	token := new(struct{})
	if _, loaded := g.held.LoadOrStore(runID, token); loaded {
		return nil, ErrInFlight
	}
	var once sync.Once
	return func() {
		once.Do(func() { g.held.CompareAndDelete(runID, token) })
	}, nil
}
