package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/moq/internal/model"
	"github.com/zsiec/moq/internal/moq"
	"github.com/zsiec/moq/internal/moqerr"
	"github.com/zsiec/moq/transport"
)

// GroupOpener opens a new unidirectional Group stream at the given send
// priority, computed by the caller via GroupPriority (spec §4.5).
type GroupOpener func(ctx context.Context, priority int) (transport.SendStream, error)

// ReadSubscribeRequest reads the Subscribe message that opens this
// stream, letting a dispatcher resolve which track to serve before
// handing the stream to PublishSubscription (spec §4.5).
func ReadSubscribeRequest(ctx context.Context, stream transport.Stream) (moq.Subscribe, error) {
	return readCtx(ctx, func() (moq.Subscribe, error) { return moq.ReadSubscribe(stream) })
}

// PublishSubscription runs the publisher side of one Subscribe stream
// end to end (spec §4.5), given the Subscribe request already read via
// ReadSubscribeRequest: send Info, dispatch a Group stream per new
// group the track produces, coalesce undeliverable groups into
// GroupDrop, and watch for SubscribeUpdate/Unsubscribe from the peer.
// It blocks until the subscription ends, returning Cancel on a clean
// Unsubscribe.
func PublishSubscription(ctx context.Context, stream transport.Stream, subscribeID uint64, track *model.TrackConsumer, open GroupOpener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var writeMu sync.Mutex
	writeLocked := func(payload []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		if _, err := stream.Write(payload); err != nil {
			return moqerr.Wrap(moqerr.Transport, err)
		}
		return nil
	}

	var current uint64
	if gc, ok := track.Latest(); ok {
		current = gc.Sequence()
	}
	info := moq.Info{Priority: track.Priority(), CurrentGroup: current}
	if err := writeLocked(info.Encode()); err != nil {
		return err
	}

	drops := newDropCoalescer(func(d moq.GroupDrop) error {
		return writeLocked(d.Encode())
	})
	defer drops.Flush()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			msg, err := readCtx(gctx, func() (moq.SubscriberMessage, error) { return moq.ReadSubscriberMessage(stream) })
			if err != nil {
				return err
			}
			if msg.Unsubscribe != nil {
				return moqerr.New(moqerr.Cancel)
			}
			// SubscribeUpdate is advisory only: group priority is
			// derived fresh from the track for every new group, so
			// there is no per-update state to mutate here.
		}
	})

	g.Go(func() error {
		for {
			gc, err := track.NextGroup(gctx)
			if err != nil {
				return err
			}
			send, err := open(gctx, GroupPriority(track.Priority(), gc.Sequence()))
			if err != nil {
				if err := drops.Add(gc.Sequence(), uint32(moqerr.CodeOf(err))); err != nil {
					return err
				}
				continue
			}
			go func(gc *model.GroupConsumer, send transport.SendStream) {
				if err := WriteGroup(gctx, send, subscribeID, gc); err != nil {
					_ = drops.Add(gc.Sequence(), uint32(moqerr.CodeOf(err)))
				}
			}(gc, send)
		}
	})

	return g.Wait()
}

// SubscriberHandle is the subscriber side of one active Subscribe
// stream: it has sent Subscribe and received Info, and can now send
// SubscribeUpdate/Unsubscribe or read GroupDrop notifications.
type SubscriberHandle struct {
	stream transport.Stream
	Info   moq.Info
}

// Subscribe runs the subscriber side handshake: send Subscribe, await
// Info.
func Subscribe(ctx context.Context, stream transport.Stream, id uint64, path string, priority int8) (*SubscriberHandle, error) {
	sub := moq.Subscribe{ID: id, Path: path, Priority: priority}
	if _, err := stream.Write(sub.Encode()); err != nil {
		return nil, moqerr.Wrap(moqerr.Transport, err)
	}
	info, err := readCtx(ctx, func() (moq.Info, error) { return moq.ReadInfo(stream) })
	if err != nil {
		return nil, err
	}
	return &SubscriberHandle{stream: stream, Info: info}, nil
}

// Update sends a SubscribeUpdate adjusting delivery priority.
func (h *SubscriberHandle) Update(priority uint64) error {
	su := moq.SubscribeUpdate{Priority: priority}
	if _, err := h.stream.Write(su.Encode()); err != nil {
		return moqerr.Wrap(moqerr.Transport, err)
	}
	return nil
}

// Unsubscribe cancels the subscription and releases the underlying
// stream, matching the publisher side's defer stream.Close() in
// WriteGroup (spec §7's "close the stream once the subscription ends").
func (h *SubscriberHandle) Unsubscribe(id uint64) error {
	u := moq.Unsubscribe{ID: id}
	if _, err := h.stream.Write(u.Encode()); err != nil {
		return moqerr.Wrap(moqerr.Transport, err)
	}
	return h.stream.Close()
}

// NextDrop blocks for the next GroupDrop notification from the
// publisher.
func (h *SubscriberHandle) NextDrop(ctx context.Context) (moq.GroupDrop, error) {
	return readCtx(ctx, func() (moq.GroupDrop, error) { return moq.ReadGroupDrop(h.stream) })
}
