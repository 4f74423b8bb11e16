package cache

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Next/Reader.Next once the producer has
// dropped the cell or queue and there is nothing further to observe.
var ErrClosed = errors.New("cache: closed")

// Watched holds a value of type T plus a generation counter. Writers
// call Update to mutate the value under exclusive access; readers call
// Next to block until the value has changed since their last observed
// generation, or the cell is closed.
type Watched[T any] struct {
	mu     sync.Mutex
	value  T
	gen    uint64
	closed bool
	wake   chan struct{}
}

// NewWatched creates a cell holding the given initial value at
// generation 0.
func NewWatched[T any](initial T) *Watched[T] {
	return &Watched[T]{value: initial, wake: make(chan struct{})}
}

// Value returns the current value and its generation, non-suspending.
func (w *Watched[T]) Value() (T, uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.value, w.gen
}

// Update mutates the value under exclusive access and wakes any
// waiters. It is a no-op, and returns false, if the cell is already
// closed.
func (w *Watched[T]) Update(fn func(*T)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	fn(&w.value)
	w.gen++
	close(w.wake)
	w.wake = make(chan struct{})
	return true
}

// Close marks the cell closed and wakes every waiter. Subsequent Next
// calls whose lastGen is already current return ErrClosed immediately;
// a caller holding an older generation still receives the final value
// first. Close is idempotent.
func (w *Watched[T]) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.wake)
}

// Next blocks until the value's generation differs from last, the
// cell closes, or ctx is done. On success it returns the new value and
// its generation.
func (w *Watched[T]) Next(ctx context.Context, last uint64) (T, uint64, error) {
	for {
		w.mu.Lock()
		if w.gen != last {
			v, g := w.value, w.gen
			w.mu.Unlock()
			return v, g, nil
		}
		if w.closed {
			w.mu.Unlock()
			var zero T
			return zero, last, ErrClosed
		}
		wake := w.wake
		w.mu.Unlock()

		select {
		case <-wake:
			// loop and re-check: either a value changed or we closed
		case <-ctx.Done():
			var zero T
			return zero, last, ctx.Err()
		}
	}
}
