package engine

import (
	"context"

	"github.com/zsiec/moq/internal/moq"
	"github.com/zsiec/moq/internal/moqerr"
	"github.com/zsiec/moq/transport"
)

// ClientHandshake runs the client side of the Session stream: send
// ClientSetup, await ServerSetup, and pick the negotiated version
// (spec §4.5, §6). stream is the first bidirectional stream the client
// opens on the session.
func ClientHandshake(ctx context.Context, stream transport.Stream, versions []uint64, extensions moq.ExtensionMap) (uint64, error) {
	cs := moq.ClientSetup{Versions: versions, Extensions: extensions}
	if _, err := stream.Write(cs.Encode()); err != nil {
		return 0, moqerr.Wrap(moqerr.Transport, err)
	}

	ss, err := readCtx(ctx, func() (moq.ServerSetup, error) { return moq.ReadServerSetup(stream) })
	if err != nil {
		return 0, err
	}

	for _, v := range versions {
		if v == ss.Version {
			return ss.Version, nil
		}
	}
	return 0, moqerr.New(moqerr.Version)
}

// ServerHandshake runs the server side: await ClientSetup, pick the
// highest mutually supported version from supported, reply ServerSetup.
func ServerHandshake(ctx context.Context, stream transport.Stream, supported []uint64, extensions moq.ExtensionMap) (uint64, error) {
	cs, err := readCtx(ctx, func() (moq.ClientSetup, error) { return moq.ReadClientSetup(stream) })
	if err != nil {
		return 0, err
	}

	var selected uint64
	found := false
	for _, want := range supported {
		for _, offered := range cs.Versions {
			if want != offered {
				continue
			}
			if !found || want > selected {
				selected = want
				found = true
			}
		}
	}
	if !found {
		return 0, moqerr.New(moqerr.Version)
	}

	ss := moq.ServerSetup{Version: selected, Extensions: extensions}
	if _, err := stream.Write(ss.Encode()); err != nil {
		return 0, moqerr.Wrap(moqerr.Transport, err)
	}
	return selected, nil
}

// readCtx races a blocking decode call against ctx.Done, honoring
// context cancellation on behalf of the wire message readers in
// package moq, which are plain blocking io.Reader consumers with no
// context awareness of their own.
func readCtx[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := fn()
		done <- result{val, err}
	}()
	select {
	case res := <-done:
		return res.val, res.err
	case <-ctx.Done():
		var zero T
		return zero, moqerr.Wrap(moqerr.Timeout, ctx.Err())
	}
}
