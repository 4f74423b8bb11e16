package cache

import (
	"context"
	"testing"
	"time"
)

func TestWatchedValueReflectsUpdate(t *testing.T) {
	t.Parallel()
	w := NewWatched(0)
	w.Update(func(v *int) { *v = 5 })

	v, gen := w.Value()
	if v != 5 || gen != 1 {
		t.Fatalf("Value() = %d, gen %d; want 5, gen 1", v, gen)
	}
}

func TestWatchedNextBlocksUntilUpdate(t *testing.T) {
	t.Parallel()
	w := NewWatched(0)
	_, gen := w.Value()

	done := make(chan int, 1)
	go func() {
		v, _, err := w.Next(context.Background(), gen)
		if err != nil {
			return
		}
		done <- v
	}()

	select {
	case <-done:
		t.Fatal("Next returned before any Update")
	case <-time.After(20 * time.Millisecond):
	}

	w.Update(func(v *int) { *v = 9 })
	select {
	case v := <-done:
		if v != 9 {
			t.Fatalf("got %d, want 9", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for updated value")
	}
}

func TestWatchedCloseWakesWaiters(t *testing.T) {
	t.Parallel()
	w := NewWatched(0)
	_, gen := w.Value()

	errc := make(chan error, 1)
	go func() {
		_, _, err := w.Next(context.Background(), gen)
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	w.Close()

	select {
	case err := <-errc:
		if err != ErrClosed {
			t.Fatalf("Next() after Close = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for close to wake Next")
	}
}

func TestWatchedUpdateAfterCloseIsNoop(t *testing.T) {
	t.Parallel()
	w := NewWatched(1)
	w.Close()

	if ok := w.Update(func(v *int) { *v = 2 }); ok {
		t.Fatal("Update after Close should return false")
	}
	v, _ := w.Value()
	if v != 1 {
		t.Fatalf("value changed after closed Update: got %d, want 1", v)
	}
}

func TestWatchedNextRespectsContext(t *testing.T) {
	t.Parallel()
	w := NewWatched(0)
	_, gen := w.Value()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := w.Next(ctx, gen); err != context.Canceled {
		t.Fatalf("Next() = %v, want context.Canceled", err)
	}
}

func TestWatchedNextReturnsImmediatelyForStaleGen(t *testing.T) {
	t.Parallel()
	w := NewWatched(0)
	w.Update(func(v *int) { *v = 1 })
	w.Update(func(v *int) { *v = 2 })

	v, gen, err := w.Next(context.Background(), 0)
	if err != nil || v != 2 || gen != 2 {
		t.Fatalf("Next(0) = %d, gen %d, err %v; want 2, gen 2, nil", v, gen, err)
	}
}
