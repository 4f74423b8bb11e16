package cache

import "testing"

func TestCleanupRunsOnceInOrder(t *testing.T) {
	t.Parallel()
	var c Cleanup
	var order []int
	c.OnClose(func() { order = append(order, 1) })
	c.OnClose(func() { order = append(order, 2) })
	c.Close()
	c.Close()

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("order = %v, want [1 2]", order)
	}
}

func TestCleanupOnCloseAfterCloseRunsImmediately(t *testing.T) {
	t.Parallel()
	var c Cleanup
	c.Close()

	ran := false
	c.OnClose(func() { ran = true })
	if !ran {
		t.Fatal("OnClose registered after Close should run immediately")
	}
}

func TestCleanupOnIdleFiresAtZero(t *testing.T) {
	t.Parallel()
	var c Cleanup
	c.AddConsumer()
	c.AddConsumer()

	fired := false
	c.OnIdle(func() { fired = true })

	c.RemoveConsumer()
	if fired {
		t.Fatal("OnIdle fired with one consumer remaining")
	}

	c.RemoveConsumer()
	if !fired {
		t.Fatal("OnIdle did not fire once consumers reached zero")
	}
}

func TestCleanupOnIdleWithNoConsumersFiresImmediately(t *testing.T) {
	t.Parallel()
	var c Cleanup
	fired := false
	c.OnIdle(func() { fired = true })
	if !fired {
		t.Fatal("OnIdle with zero consumers should fire immediately")
	}
}

func TestCleanupConsumersClampsAtZero(t *testing.T) {
	t.Parallel()
	var c Cleanup
	c.RemoveConsumer()
	if got := c.Consumers(); got != 0 {
		t.Fatalf("Consumers() = %d, want 0", got)
	}
}
