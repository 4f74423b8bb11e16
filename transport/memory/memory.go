// Package memory provides an in-process transport.Session pair backed by
// io.Pipe, for driving internal/engine and session tests without a real
// QUIC socket (spec §8, mirroring how the teacher exercises its session
// logic against in-process fakes rather than a live network).
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zsiec/moq/internal/moqerr"
	"github.com/zsiec/moq/transport"
)

// ResetError is returned from Read/Write once the peer has called Reset
// or CancelRead, carrying the application error code it passed.
type ResetError struct {
	Code uint32
}

func (e *ResetError) Error() string {
	return fmt.Sprintf("memory: stream reset, code %d", e.Code)
}

// ResetCode extracts the code from a ResetError, if err is one.
func ResetCode(err error) (uint32, bool) {
	var re *ResetError
	if errors.As(err, &re) {
		return re.Code, true
	}
	return 0, false
}

// Session is one in-process endpoint of a connected pair created by
// NewPair.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc

	peer *Session

	uniIncoming chan *receiveStream
	biIncoming  chan *bidiStream

	closeOnce sync.Once
	closeErr  error
}

// NewPair returns two Sessions, each other's peer: streams opened on one
// side are accepted on the other.
func NewPair() (a, b *Session) {
	actx, acancel := context.WithCancel(context.Background())
	bctx, bcancel := context.WithCancel(context.Background())

	a = &Session{
		ctx:         actx,
		cancel:      acancel,
		uniIncoming: make(chan *receiveStream, 16),
		biIncoming:  make(chan *bidiStream, 16),
	}
	b = &Session{
		ctx:         bctx,
		cancel:      bcancel,
		uniIncoming: make(chan *receiveStream, 16),
		biIncoming:  make(chan *bidiStream, 16),
	}
	a.peer, b.peer = b, a
	return a, b
}

var _ transport.Session = (*Session)(nil)

// Context implements transport.Session.
func (s *Session) Context() context.Context { return s.ctx }

// OpenUni implements transport.Session.
func (s *Session) OpenUni(ctx context.Context) (transport.SendStream, error) {
	if s.ctx.Err() != nil {
		return nil, moqerr.Wrap(moqerr.Transport, s.ctx.Err())
	}
	pr, pw := newPipe()
	rs := &receiveStream{pr: pr}
	select {
	case s.peer.uniIncoming <- rs:
		return &sendStream{pw: pw}, nil
	case <-ctx.Done():
		return nil, moqerr.Wrap(moqerr.Timeout, ctx.Err())
	case <-s.peer.ctx.Done():
		return nil, moqerr.New(moqerr.Transport)
	}
}

// AcceptUni implements transport.Session.
func (s *Session) AcceptUni(ctx context.Context) (transport.ReceiveStream, error) {
	select {
	case rs := <-s.uniIncoming:
		return rs, nil
	case <-ctx.Done():
		return nil, moqerr.Wrap(moqerr.Timeout, ctx.Err())
	case <-s.ctx.Done():
		return nil, moqerr.New(moqerr.Transport)
	}
}

// OpenBi implements transport.Session.
func (s *Session) OpenBi(ctx context.Context) (transport.Stream, error) {
	if s.ctx.Err() != nil {
		return nil, moqerr.Wrap(moqerr.Transport, s.ctx.Err())
	}
	reqR, reqW := newPipe()
	respR, respW := newPipe()

	local := &bidiStream{sendStream: sendStream{pw: reqW}, receiveStream: receiveStream{pr: respR}}
	remote := &bidiStream{sendStream: sendStream{pw: respW}, receiveStream: receiveStream{pr: reqR}}

	select {
	case s.peer.biIncoming <- remote:
		return local, nil
	case <-ctx.Done():
		return nil, moqerr.Wrap(moqerr.Timeout, ctx.Err())
	case <-s.peer.ctx.Done():
		return nil, moqerr.New(moqerr.Transport)
	}
}

// AcceptBi implements transport.Session.
func (s *Session) AcceptBi(ctx context.Context) (transport.Stream, error) {
	select {
	case bs := <-s.biIncoming:
		return bs, nil
	case <-ctx.Done():
		return nil, moqerr.Wrap(moqerr.Timeout, ctx.Err())
	case <-s.ctx.Done():
		return nil, moqerr.New(moqerr.Transport)
	}
}

// CloseWithError implements transport.Session, tearing down both ends.
func (s *Session) CloseWithError(code uint32, reason string) error {
	s.closeOnce.Do(func() {
		s.closeErr = &ResetError{Code: code}
		s.cancel()
		s.peer.cancel()
	})
	return nil
}
