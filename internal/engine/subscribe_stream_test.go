package engine

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/zsiec/moq/internal/model"
	"github.com/zsiec/moq/transport"
	"github.com/zsiec/moq/transport/memory"
)

func TestPublishSubscriptionDeliversGroupsInOrder(t *testing.T) {
	t.Parallel()
	a, b := memory.NewPair()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tp := model.NewTrackProducer("video", 3)
	defer tp.Close()

	controlA, err := a.OpenBi(ctx)
	if err != nil {
		t.Fatal(err)
	}
	controlBCh := make(chan transport.Stream, 1)
	go func() {
		s, err := b.AcceptBi(ctx)
		if err != nil {
			t.Error(err)
			return
		}
		controlBCh <- s
	}()
	controlB := <-controlBCh

	open := func(ctx context.Context, priority int) (transport.SendStream, error) {
		return b.OpenUni(ctx)
	}

	pubErr := make(chan error, 1)
	go func() {
		sub, err := ReadSubscribeRequest(ctx, controlB)
		if err != nil {
			pubErr <- err
			return
		}
		pubErr <- PublishSubscription(ctx, controlB, sub.ID, tp.Consumer(), open)
	}()

	handle, err := Subscribe(ctx, controlA, 1, "video", 3)
	if err != nil {
		t.Fatal(err)
	}
	if handle.Info.Priority != 3 {
		t.Fatalf("Info.Priority = %d, want 3", handle.Info.Priority)
	}

	g1, err := tp.AppendGroup()
	if err != nil {
		t.Fatal(err)
	}
	if err := g1.WriteFrame(model.Frame{Payload: []byte("a")}); err != nil {
		t.Fatal(err)
	}
	if err := g1.Finish(); err != nil {
		t.Fatal(err)
	}

	recv, err := a.AcceptUni(ctx)
	if err != nil {
		t.Fatal(err)
	}
	gr, err := ReadGroupHeader(recv)
	if err != nil {
		t.Fatal(err)
	}
	if gr.Header().SubscribeID != 1 || gr.Header().Sequence != 0 {
		t.Fatalf("header = %+v, want SubscribeID=1 Sequence=0", gr.Header())
	}
	f, err := gr.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	if string(f.Payload) != "a" {
		t.Fatalf("frame payload = %q, want %q", f.Payload, "a")
	}
	if _, err := gr.ReadFrame(); err != io.EOF {
		t.Fatalf("ReadFrame() at end = %v, want io.EOF", err)
	}

	if err := handle.Unsubscribe(1); err != nil {
		t.Fatal(err)
	}
	if err := <-pubErr; err == nil {
		t.Fatal("PublishSubscription() = nil error after Unsubscribe, want Cancel")
	}
}
