package form

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrSubmitInProgress is returned when a submit starts while another is running.
var ErrSubmitInProgress = errors.New("a submission is already in progress")

// Guard lets one submission run at a time.
type Guard struct {
	busy atomic.Bool
}

// Busy reports whether a submission is running.
func (g *Guard) Busy() bool {
	return g.busy.Load()
}

// Submit validates v and, only if it is valid, runs fn. Concurrent calls
// fail with ErrSubmitInProgress without running anything.
func (g *Guard) Submit(ctx context.Context, v Validator, fn func(context.Context) error) error {
	if !g.busy.CompareAndSwap(false, true) {
		return ErrSubmitInProgress
	}
	defer g.busy.Store(false)

	if v != nil {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return fn(ctx)
}
