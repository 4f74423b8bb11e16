package engine

import (
	"context"
	"errors"
	"io"

	"github.com/zsiec/moq/internal/model"
	"github.com/zsiec/moq/internal/moq"
	"github.com/zsiec/moq/internal/moqerr"
	"github.com/zsiec/moq/transport"
)

// WriteGroup streams gc's frames as a Group stream: header, then one
// Frame{size} header plus payload per frame (spec §4.5, §6). If the
// subscriber stops the stream, send's next Write fails and WriteGroup
// returns that error wrapped with code Transport (the stop is not
// reported as Cancel), without touching gc's producer — the group is
// simply abandoned on this connection and the subscription continues.
func WriteGroup(ctx context.Context, send transport.SendStream, subscribeID uint64, gc *model.GroupConsumer) error {
	defer send.Close()

	header := moq.GroupHeader{SubscribeID: subscribeID, Sequence: gc.Sequence()}
	if _, err := send.Write(header.Encode()); err != nil {
		return moqerr.Wrap(moqerr.Transport, err)
	}

	for {
		frame, err := gc.ReadFrame(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fh := moq.FrameHeader{Size: uint64(len(frame.Payload))}
		if _, err := send.Write(fh.Encode()); err != nil {
			return moqerr.Wrap(moqerr.Transport, err)
		}
		if _, err := send.Write(frame.Payload); err != nil {
			return moqerr.Wrap(moqerr.Transport, err)
		}
	}
}

// GroupReader decodes an incoming Group stream's Header, then yields
// one Frame per ReadFrame call until the stream ends.
type GroupReader struct {
	recv   transport.ReceiveStream
	br     moq.ByteReader
	header moq.GroupHeader
}

// ReadGroupHeader decodes the leading Header of a freshly accepted
// Group stream.
func ReadGroupHeader(recv transport.ReceiveStream) (*GroupReader, error) {
	br := moq.NewByteReader(recv)
	tag, err := moq.ReadVarintFrom(br)
	if err != nil {
		return nil, err
	}
	if tag != moq.StreamGroup {
		return nil, moqerr.New(moqerr.UnexpectedStream)
	}
	subID, err := moq.ReadVarintFrom(br)
	if err != nil {
		return nil, err
	}
	seq, err := moq.ReadVarintFrom(br)
	if err != nil {
		return nil, err
	}
	return &GroupReader{
		recv:   recv,
		br:     br,
		header: moq.GroupHeader{SubscribeID: subID, Sequence: seq},
	}, nil
}

// Header returns the decoded Group stream header.
func (r *GroupReader) Header() moq.GroupHeader { return r.header }

// ReadFrame decodes the next Frame{size} header and its payload,
// returning io.EOF once the stream is exhausted cleanly.
func (r *GroupReader) ReadFrame() (model.Frame, error) {
	size, err := moq.ReadVarintFrom(r.br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return model.Frame{}, io.EOF
		}
		return model.Frame{}, err
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r.br, payload); err != nil {
		return model.Frame{}, moqerr.Wrap(moqerr.Decode, err)
	}
	return model.Frame{Payload: payload}, nil
}
