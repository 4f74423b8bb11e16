package session

import (
	"context"
	"testing"
	"time"

	"github.com/zsiec/moq/internal/model"
	"github.com/zsiec/moq/internal/origin"
	"github.com/zsiec/moq/transport/memory"
)

func connectPair(t *testing.T) (client, server *Session) {
	t.Helper()
	a, b := memory.NewPair()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	serverCh := make(chan *Session, 1)
	serverErr := make(chan error, 1)
	go func() {
		s, err := Accept(ctx, b, DefaultVersions)
		serverErr <- err
		serverCh <- s
	}()

	c, err := Connect(ctx, a, DefaultVersions)
	if err != nil {
		t.Fatalf("Connect() = %v", err)
	}
	if err := <-serverErr; err != nil {
		t.Fatalf("Accept() = %v", err)
	}
	return c, <-serverCh
}

func TestConnectAcceptNegotiatesVersion(t *testing.T) {
	t.Parallel()
	client, server := connectPair(t)
	if client.Version() != 1 || server.Version() != 1 {
		t.Fatalf("versions = %d, %d, want 1, 1", client.Version(), server.Version())
	}
	if client.ID() == "" || server.ID() == "" || client.ID() == server.ID() {
		t.Fatalf("session IDs must be non-empty and distinct: %q, %q", client.ID(), server.ID())
	}
}

// TestPublishConsumeDeliversGroups mirrors scenario S1: a broadcast
// published on one side is subscribed to from the other, and frames
// appended after the subscription is established arrive in order.
func TestPublishConsumeDeliversGroups(t *testing.T) {
	t.Parallel()
	client, server := connectPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bp := model.NewBroadcastProducer()
	tp, err := bp.CreateTrack("video", 3)
	if err != nil {
		t.Fatal(err)
	}
	server.Publish("room/alice", bp.Consumer())

	rb := client.Consume("room/alice")
	tc, err := rb.Subscribe(ctx, "video")
	if err != nil {
		t.Fatal(err)
	}

	g, err := tp.AppendGroup()
	if err != nil {
		t.Fatal(err)
	}
	if err := g.WriteFrame(model.Frame{Payload: []byte("hello")}); err != nil {
		t.Fatal(err)
	}
	if err := g.Finish(); err != nil {
		t.Fatal(err)
	}

	gc, err := tc.NextGroup(ctx)
	if err != nil {
		t.Fatal(err)
	}
	f, err := gc.ReadFrame(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if string(f.Payload) != "hello" {
		t.Fatalf("frame payload = %q, want %q", f.Payload, "hello")
	}

	// A second Subscribe for the same name reuses the same relay buffer.
	tc2, err := rb.Subscribe(ctx, "video")
	if err != nil {
		t.Fatal(err)
	}
	if tc2 != tc {
		t.Fatalf("second Subscribe() for the same name returned a different TrackConsumer")
	}
}

// TestConsumePrefixObservesAnnouncements mirrors scenario S3's ordering
// at the Session level: the initial snapshot precedes Live, which
// precedes any subsequently published broadcast.
func TestConsumePrefixObservesAnnouncements(t *testing.T) {
	t.Parallel()
	client, server := connectPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bp := model.NewBroadcastProducer()
	server.Publish("room/alice", bp.Consumer())

	ann, err := client.ConsumePrefix(ctx, "room/")
	if err != nil {
		t.Fatal(err)
	}

	a1, err := ann.Next(ctx)
	if err != nil || a1.Kind != origin.Active || a1.Suffix != "alice" {
		t.Fatalf("got %+v, %v; want Active(alice)", a1, err)
	}
	a2, err := ann.Next(ctx)
	if err != nil || a2.Kind != origin.Live {
		t.Fatalf("got %+v, %v; want Live", a2, err)
	}

	bp2 := model.NewBroadcastProducer()
	server.Publish("room/bob", bp2.Consumer())

	a3, err := ann.Next(ctx)
	if err != nil || a3.Kind != origin.Active || a3.Suffix != "bob" {
		t.Fatalf("got %+v, %v; want Active(bob)", a3, err)
	}
}

// TestPublishPrefixRelaysAnnouncedBroadcasts mirrors a relay hop: a
// broadcast published into an upstream registry becomes consumable
// through the session once PublishPrefix bridges the two.
func TestPublishPrefixRelaysAnnouncedBroadcasts(t *testing.T) {
	t.Parallel()
	client, server := connectPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	upstream := origin.NewRegistry()
	bp := model.NewBroadcastProducer()
	tp, err := bp.CreateTrack("video", 0)
	if err != nil {
		t.Fatal(err)
	}
	upstream.Publish("alice", bp.Consumer())
	server.PublishPrefix("room/", upstream)

	// Wait for the relay goroutine to have republished the broadcast
	// under the session's own registry before subscribing to it.
	ann, err := client.ConsumePrefix(ctx, "room/")
	if err != nil {
		t.Fatal(err)
	}
	a, err := ann.Next(ctx)
	if err != nil || a.Suffix != "alice" {
		t.Fatalf("got %+v, %v; want Active(alice)", a, err)
	}

	rb := client.Consume("room/alice")
	tc, err := rb.Subscribe(ctx, "video")
	if err != nil {
		t.Fatal(err)
	}

	g, err := tp.AppendGroup()
	if err != nil {
		t.Fatal(err)
	}
	if err := g.WriteFrame(model.Frame{Payload: []byte("relayed")}); err != nil {
		t.Fatal(err)
	}
	if err := g.Finish(); err != nil {
		t.Fatal(err)
	}

	gc, err := tc.NextGroup(ctx)
	if err != nil {
		t.Fatal(err)
	}
	f, err := gc.ReadFrame(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if string(f.Payload) != "relayed" {
		t.Fatalf("frame payload = %q, want %q", f.Payload, "relayed")
	}
}
