package model

import (
	"context"
	"sync"

	"github.com/zsiec/moq/internal/cache"
)

// cancelGate tracks how many Consumer handles are currently attached to
// a Producer and lets the Producer wait for the "cancel" signal: the
// last Consumer has gone away after at least one ever attached. It is
// built directly on cache.Cleanup's consumer refcount (AddConsumer,
// RemoveConsumer, OnIdle) — the "scoped cleanup with consumer
// refcounting" primitive internal/cache's package doc names (spec
// §4.2) — plus a small latch of its own for the permanent wake a
// Producer close needs regardless of how many Consumers remain.
//
// "No Consumer has ever attached" is tracked separately from the
// refcount reaching zero: Cleanup.OnIdle fires immediately if
// registered while the count is already zero, which would misfire on
// the very first addConsumer call. Registration is deferred until
// after that first AddConsumer, so OnIdle only ever observes a
// drop-to-zero, never the pre-attach state.
type cancelGate struct {
	cleanup cache.Cleanup

	mu       sync.Mutex
	attached bool

	done     chan struct{}
	doneOnce sync.Once
}

func newCancelGate() *cancelGate {
	return &cancelGate{done: make(chan struct{})}
}

func (g *cancelGate) addConsumer() {
	g.cleanup.AddConsumer()
	g.mu.Lock()
	if !g.attached {
		g.attached = true
		g.cleanup.OnIdle(func() { g.doneOnce.Do(func() { close(g.done) }) })
	}
	g.mu.Unlock()
}

func (g *cancelGate) removeConsumer() {
	g.cleanup.RemoveConsumer()
}

// Wait blocks until the last attached Consumer has been removed, or
// ctx is done. A Producer with no Consumer attached yet blocks on ctx;
// once the gate has been released (the Producer closed), Wait returns
// nil immediately.
func (g *cancelGate) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// release wakes any Wait callers permanently, used when the Producer
// itself closes so a pending Wait doesn't outlive it.
func (g *cancelGate) release() {
	g.doneOnce.Do(func() { close(g.done) })
}
