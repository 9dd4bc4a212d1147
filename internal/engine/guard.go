package engine

import (
	"sync/atomic"

	errs "clamm-options/internal/errors"
)

// guard is the engine-wide reentrancy lock. Every state-mutating entry
// point acquires it on entry; a second acquisition — whether from a
// nested callback re-entering the engine or from a concurrent caller —
// is rejected outright rather than queued, so exactly one operation's
// side effects are ever in flight.
type guard struct {
	locked atomic.Bool
}

// enter acquires the guard and returns its release function. The
// release is unconditional: callers defer it immediately so every exit
// path, success or failure, unlocks.
func (g *guard) enter() (func(), error) {
	if !g.locked.CompareAndSwap(false, true) {
		return nil, errs.ErrReentrantCall
	}
	return func() { g.locked.Store(false) }, nil
}
