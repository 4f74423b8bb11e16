package model

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/zsiec/moq/internal/moqerr"
)

func TestGroupFrameOrder(t *testing.T) {
	t.Parallel()
	g := newGroupProducer(0)
	c1 := g.Consumer()
	c2 := g.Consumer()

	payloads := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	for _, p := range payloads {
		if err := g.WriteFrame(Frame{Payload: p}); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.Finish(); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for _, c := range []*GroupConsumer{c1, c2} {
		var got []byte
		for {
			f, err := c.ReadFrame(ctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				t.Fatal(err)
			}
			got = append(got, f.Payload...)
		}
		if string(got) != "abc" {
			t.Fatalf("got %q, want %q", got, "abc")
		}
	}
}

func TestGroupSizeEnforcementUnderflow(t *testing.T) {
	t.Parallel()
	g := newGroupProducer(0)
	c := g.Consumer()

	fw, err := g.CreateFrame(8, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("1234567")); err != nil {
		t.Fatal(err)
	}
	if err := fw.Close(); moqerr.CodeOf(err) != moqerr.WrongSize {
		t.Fatalf("Close() = %v, want WrongSize", err)
	}

	ctx := context.Background()
	_, err = c.ReadFrame(ctx)
	if moqerr.CodeOf(err) != moqerr.WrongSize {
		t.Fatalf("ReadFrame() = %v, want WrongSize", err)
	}
}

func TestGroupSizeEnforcementOverflow(t *testing.T) {
	t.Parallel()
	g := newGroupProducer(0)
	fw, err := g.CreateFrame(4, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("12345")); moqerr.CodeOf(err) != moqerr.WrongSize {
		t.Fatalf("Write() = %v, want WrongSize", err)
	}
}

func TestGroupCancellationSafety(t *testing.T) {
	t.Parallel()
	g := newGroupProducer(0)
	if err := g.WriteFrame(Frame{Payload: []byte("x")}); err != nil {
		t.Fatal(err)
	}

	a := g.Consumer()
	b := g.Consumer()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.ReadFrame(ctx); err == nil {
		t.Fatal("expected cancellation error")
	}
	a.Close()

	f, err := b.ReadFrame(context.Background())
	if err != nil || string(f.Payload) != "x" {
		t.Fatalf("other consumer affected by cancellation: got %v, %v", f, err)
	}
}

func TestGroupAbortPropagatesToConsumers(t *testing.T) {
	t.Parallel()
	g := newGroupProducer(0)
	c1 := g.Consumer()
	c2 := g.Consumer()
	g.Abort(moqerr.ProtocolViolation)

	for _, c := range []*GroupConsumer{c1, c2} {
		_, err := c.ReadFrame(context.Background())
		if moqerr.CodeOf(err) != moqerr.ProtocolViolation {
			t.Fatalf("ReadFrame() = %v, want ProtocolViolation", err)
		}
	}
}

func TestGroupCancelledWaitsForLastConsumer(t *testing.T) {
	t.Parallel()
	g := newGroupProducer(0)
	c1 := g.Consumer()
	c2 := g.Consumer()

	done := make(chan struct{})
	go func() {
		g.Cancelled(context.Background())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Cancelled returned before any consumer closed")
	case <-time.After(20 * time.Millisecond):
	}

	c1.Close()
	select {
	case <-done:
		t.Fatal("Cancelled returned before the last consumer closed")
	case <-time.After(20 * time.Millisecond):
	}

	c2.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Cancelled did not unblock after the last consumer closed")
	}
}
