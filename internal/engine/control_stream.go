package engine

import (
	"context"

	"github.com/zsiec/moq/internal/moq"
	"github.com/zsiec/moq/internal/moqerr"
	"github.com/zsiec/moq/transport"
)

// ControlRequest is the first message read off a freshly accepted
// bidirectional control stream, discriminated by whichever of Announce
// or Subscribe is non-nil. The stream's own leading tag (StreamAnnounce
// or StreamSubscribe) is what tells the two apart, mirroring the way
// GroupHeader's Varint(type=Group) self-identifies a unidirectional
// Group stream (spec §4.1).
type ControlRequest struct {
	Announce  *moq.AnnouncePlease
	Subscribe *moq.Subscribe
}

// ReadControlRequest reads the opening request of a freshly accepted
// bidirectional stream, deciding between an Announce and a Subscribe
// stream by its leading tag.
func ReadControlRequest(ctx context.Context, stream transport.Stream) (ControlRequest, error) {
	return readCtx(ctx, func() (ControlRequest, error) {
		br := moq.NewByteReader(stream)
		tag, err := moq.ReadVarintFrom(br)
		if err != nil {
			return ControlRequest{}, err
		}
		switch tag {
		case moq.StreamAnnounce:
			ap, err := moq.ReadAnnouncePleaseBody(br)
			if err != nil {
				return ControlRequest{}, err
			}
			return ControlRequest{Announce: &ap}, nil
		case moq.StreamSubscribe:
			sub, err := moq.ReadSubscribeBody(br)
			if err != nil {
				return ControlRequest{}, err
			}
			return ControlRequest{Subscribe: &sub}, nil
		default:
			return ControlRequest{}, moqerr.New(moqerr.UnexpectedStream)
		}
	})
}
