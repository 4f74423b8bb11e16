package engine

import (
	"context"

	"github.com/zsiec/moq/internal/moq"
	"github.com/zsiec/moq/internal/moqerr"
	"github.com/zsiec/moq/internal/origin"
	"github.com/zsiec/moq/transport"
)

// ReadAnnouncePlease reads the AnnouncePlease message that opens this
// stream, letting a dispatcher resolve which prefix's PrefixConsumer to
// serve before handing the stream to PublishAnnounces.
func ReadAnnouncePlease(ctx context.Context, stream transport.Stream) (string, error) {
	ap, err := readCtx(ctx, func() (moq.AnnouncePlease, error) { return moq.ReadAnnouncePlease(stream) })
	if err != nil {
		return "", err
	}
	return ap.Prefix, nil
}

// PublishAnnounces runs the publisher side of one Announce stream
// (spec §4.5), given the AnnouncePlease already read via
// ReadAnnouncePlease: it streams Announce messages from pc until
// either side closes the stream. It blocks until ctx is cancelled or
// the stream errors.
func PublishAnnounces(ctx context.Context, stream transport.Stream, pc *origin.PrefixConsumer) error {
	for {
		a, err := pc.Next(ctx)
		if err != nil {
			return err
		}
		wireMsg := moq.Announce{Status: toWireStatus(a.Kind), Suffix: a.Suffix}
		if _, err := stream.Write(wireMsg.Encode()); err != nil {
			return moqerr.Wrap(moqerr.Transport, err)
		}
	}
}

// SubscribeAnnounces runs the subscriber side: it sends AnnouncePlease
// for prefix and returns a function that yields each subsequent
// Announce the publisher sends, in order.
func SubscribeAnnounces(ctx context.Context, stream transport.Stream, prefix string) (func(context.Context) (origin.Announcement, error), error) {
	ap := moq.AnnouncePlease{Prefix: prefix}
	if _, err := stream.Write(ap.Encode()); err != nil {
		return nil, moqerr.Wrap(moqerr.Transport, err)
	}

	next := func(ctx context.Context) (origin.Announcement, error) {
		a, err := readCtx(ctx, func() (moq.Announce, error) { return moq.ReadAnnounce(stream) })
		if err != nil {
			return origin.Announcement{}, err
		}
		return origin.Announcement{Kind: fromWireStatus(a.Status), Suffix: a.Suffix}, nil
	}
	return next, nil
}

func toWireStatus(k origin.Kind) moq.AnnounceStatus {
	switch k {
	case origin.Active:
		return moq.AnnounceActive
	case origin.Ended:
		return moq.AnnounceEnded
	default:
		return moq.AnnounceLive
	}
}

func fromWireStatus(s moq.AnnounceStatus) origin.Kind {
	switch s {
	case moq.AnnounceActive:
		return origin.Active
	case moq.AnnounceEnded:
		return origin.Ended
	default:
		return origin.Live
	}
}
