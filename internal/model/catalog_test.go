package model

import (
	"context"
	"testing"
	"time"
)

func TestCatalogPublishAndReadLatest(t *testing.T) {
	t.Parallel()
	bp := NewBroadcastProducer()
	bc := bp.Consumer()

	cat := Catalog{Tracks: map[string]TrackInfo{"v": {Priority: 1}}}
	snapshot, err := cat.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if err := bp.PublishCatalog(snapshot); err != nil {
		t.Fatal(err)
	}

	cc := bc.Catalog()
	got, err := cc.Latest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.Tracks["v"].Priority != 1 {
		t.Fatalf("got %+v, want priority 1 for track v", got)
	}
}

func TestCatalogLatestWaitsForFirstSnapshot(t *testing.T) {
	t.Parallel()
	bp := NewBroadcastProducer()
	bc := bp.Consumer()
	cc := bc.Catalog()

	done := make(chan Catalog, 1)
	go func() {
		got, err := cc.Latest(context.Background())
		if err != nil {
			return
		}
		done <- got
	}()

	cat := Catalog{Tracks: map[string]TrackInfo{"a": {Priority: 0}}}
	snapshot, _ := cat.Marshal()
	if err := bp.PublishCatalog(snapshot); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-done:
		if _, ok := got.Tracks["a"]; !ok {
			t.Fatalf("got %+v, missing track a", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first catalog snapshot")
	}
}

func TestCatalogEachSnapshotIsItsOwnGroup(t *testing.T) {
	t.Parallel()
	bp := NewBroadcastProducer()
	bc := bp.Consumer()

	one, _ := Catalog{Tracks: map[string]TrackInfo{"a": {}}}.Marshal()
	two, _ := Catalog{Tracks: map[string]TrackInfo{"a": {}, "b": {}}}.Marshal()
	if err := bp.PublishCatalog(one); err != nil {
		t.Fatal(err)
	}
	if err := bp.PublishCatalog(two); err != nil {
		t.Fatal(err)
	}

	cc := bc.Catalog()
	got, err := cc.Latest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Tracks) != 2 {
		t.Fatalf("got %d tracks, want 2 (latest snapshot)", len(got.Tracks))
	}
}
