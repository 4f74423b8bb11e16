package engine

import (
	"context"
	"testing"
	"time"

	"github.com/zsiec/moq/internal/moqerr"
	"github.com/zsiec/moq/transport/memory"
)

func TestHandshakeNegotiatesHighestCommonVersion(t *testing.T) {
	t.Parallel()
	a, b := memory.NewPair()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	clientStream, err := a.OpenBi(ctx)
	if err != nil {
		t.Fatal(err)
	}

	serverDone := make(chan uint64, 1)
	serverErr := make(chan error, 1)
	go func() {
		serverStream, err := b.AcceptBi(ctx)
		if err != nil {
			serverErr <- err
			return
		}
		v, err := ServerHandshake(ctx, serverStream, []uint64{1, 2}, nil)
		serverDone <- v
		serverErr <- err
	}()

	v, err := ClientHandshake(ctx, clientStream, []uint64{1, 2, 3}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v != 2 {
		t.Fatalf("client negotiated version = %d, want 2", v)
	}
	if err := <-serverErr; err != nil {
		t.Fatal(err)
	}
	if sv := <-serverDone; sv != 2 {
		t.Fatalf("server negotiated version = %d, want 2", sv)
	}
}

// TestHandshakeVersionMismatch mirrors scenario S6: client and server
// share no common version, so the handshake fails with Version on both
// sides.
func TestHandshakeVersionMismatch(t *testing.T) {
	t.Parallel()
	a, b := memory.NewPair()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	clientStream, err := a.OpenBi(ctx)
	if err != nil {
		t.Fatal(err)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverStream, err := b.AcceptBi(ctx)
		if err != nil {
			serverErr <- err
			return
		}
		_, err = ServerHandshake(ctx, serverStream, []uint64{9}, nil)
		serverErr <- err
	}()

	_, err = ClientHandshake(ctx, clientStream, []uint64{1, 2}, nil)
	if moqerr.CodeOf(err) != moqerr.Version {
		t.Fatalf("ClientHandshake() err = %v, want Version", err)
	}
	if err := <-serverErr; moqerr.CodeOf(err) != moqerr.Version {
		t.Fatalf("ServerHandshake() err = %v, want Version", err)
	}
}
