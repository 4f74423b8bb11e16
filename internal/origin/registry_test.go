package origin

import (
	"context"
	"testing"
	"time"

	"github.com/zsiec/moq/internal/model"
	"github.com/zsiec/moq/internal/moqerr"
)

func TestRegistryConsumeNotFound(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	if _, err := r.Consume("room/alice"); moqerr.CodeOf(err) != moqerr.NotFound {
		t.Fatalf("Consume() = %v, want NotFound", err)
	}
}

func TestRegistryPublishConsume(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	bp := model.NewBroadcastProducer()
	bc := bp.Consumer()
	r.Publish("room/alice", bc)

	got, err := r.Consume("room/alice")
	if err != nil || got != bc {
		t.Fatalf("Consume() = %v, %v; want bc, nil", got, err)
	}
}

// TestRegistryAnnouncementOrderSinglePrefix mirrors spec scenario S3:
// a broadcast concurrent with the subscribe lands in the initial
// snapshot before Live; a broadcast published (or dropped) after the
// subscriber has caught up is observed strictly after Live.
func TestRegistryAnnouncementOrderSinglePrefix(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	aliceProd := model.NewBroadcastProducer()
	r.Publish("room/alice", aliceProd.Consumer())

	pc := r.ConsumePrefix("room/")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	a1, err := pc.Next(ctx)
	if err != nil || a1.Kind != Active || a1.Suffix != "alice" {
		t.Fatalf("got %+v, %v; want Active(alice)", a1, err)
	}
	a2, err := pc.Next(ctx)
	if err != nil || a2.Kind != Live {
		t.Fatalf("got %+v, %v; want Live", a2, err)
	}

	bobProd := model.NewBroadcastProducer()
	r.Publish("room/bob", bobProd.Consumer())
	aliceProd.Close()

	a3, err := pc.Next(ctx)
	if err != nil || a3.Kind != Active || a3.Suffix != "bob" {
		t.Fatalf("got %+v, %v; want Active(bob)", a3, err)
	}
	a4, err := pc.Next(ctx)
	if err != nil || a4.Kind != Ended || a4.Suffix != "alice" {
		t.Fatalf("got %+v, %v; want Ended(alice)", a4, err)
	}
}

func TestRegistryLiveEmittedImmediatelyWhenEmpty(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	pc := r.ConsumePrefix("room/")

	a, err := pc.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if a.Kind != Live {
		t.Fatalf("got %+v, want Live", a)
	}
}

func TestRegistryReplacePublishYieldsEndedThenActive(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	first := model.NewBroadcastProducer()
	r.Publish("room/alice", first.Consumer())

	pc := r.ConsumePrefix("room/")
	// drain snapshot (Active) then Live
	snap, err := pc.Next(context.Background())
	if err != nil || snap.Kind != Active {
		t.Fatalf("snapshot = %+v, %v; want Active", snap, err)
	}
	live, err := pc.Next(context.Background())
	if err != nil || live.Kind != Live {
		t.Fatalf("got %+v, %v; want Live", live, err)
	}

	second := model.NewBroadcastProducer()
	r.Publish("room/alice", second.Consumer())

	ended, err := pc.Next(context.Background())
	if err != nil || ended.Kind != Ended || ended.Suffix != "alice" {
		t.Fatalf("got %+v, %v; want Ended(alice)", ended, err)
	}
	active, err := pc.Next(context.Background())
	if err != nil || active.Kind != Active || active.Suffix != "alice" {
		t.Fatalf("got %+v, %v; want Active(alice)", active, err)
	}
}

func TestRegistryConsumeAllSnapshot(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	bp := model.NewBroadcastProducer()
	r.Publish("room/alice", bp.Consumer())

	all := r.ConsumeAll()
	if len(all) != 1 || all[0].Path != "room/alice" {
		t.Fatalf("ConsumeAll() = %+v, want one entry at room/alice", all)
	}
}

func TestRegistryAutoCleanupOnProducerClose(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	bp := model.NewBroadcastProducer()
	r.Publish("room/alice", bp.Consumer())
	bp.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err := r.Consume("room/alice"); moqerr.CodeOf(err) == moqerr.NotFound {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("entry was not cleaned up after producer closed")
}
