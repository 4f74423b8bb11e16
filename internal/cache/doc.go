// Package cache provides three reusable concurrency primitives: a
// watched state cell, a lazy ordered sequence, and scoped cleanup with
// consumer refcounting. The data model is built on the sequence and on
// the cleanup's consumer refcount; the watched cell has no caller
// outside this package.
//
// All three work identically whether the caller is a native
// multi-goroutine program or a single-goroutine `js/wasm` build — Go
// has one memory model regardless of GOOS/GOARCH, so unlike the
// reference implementation's conditional Arc<Mutex<_>> / Rc<RefCell<_>>
// split, there is exactly one primitive here, built on sync.Mutex. No
// lock in this package is ever held across a suspension point; every
// blocking wait is a channel receive guarded by a context.
package cache
