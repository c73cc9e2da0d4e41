// Package calllock serializes calls into an object while letting calls that
// originate inside the same call chain (for example from a ledger receive
// hook) run without deadlocking.
//
// A call chain is identified by the context: Enter marks the returned
// context, and a nested Enter with a marked context skips the mutex. The
// nested call then observes whatever state the outer call has committed so
// far, which is why callers must commit effects before any external call.
//
// Objects that call into each other from hooks must share one Lock: two
// locks taken in opposite orders by two chains deadlock. A marked context
// is a capability. Hooks must not keep it or hand it to another goroutine,
// since any holder of it bypasses the mutex.
package calllock

import (
	"context"
	"sync"
)

// Lock is a context-aware, chain-reentrant mutex. The zero value is ready.
type Lock struct {
	mu sync.Mutex
}

type heldKey struct{ l *Lock }

// Enter acquires the lock unless ctx already holds it. The returned release
// func must be called exactly once.
func (l *Lock) Enter(ctx context.Context) (context.Context, func()) {
	if Held(ctx, l) {
		return ctx, func() {}
	}
	l.mu.Lock()
	return context.WithValue(ctx, heldKey{l}, true), l.mu.Unlock
}

// Held reports whether ctx belongs to a call chain that holds l.
func Held(ctx context.Context, l *Lock) bool {
	held, _ := ctx.Value(heldKey{l}).(bool)
	return held
}
