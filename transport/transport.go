// Package transport defines the generic bidirectional/unidirectional
// stream transport the stream engine runs on (spec §6). internal/engine
// and session depend only on these interfaces, never on QUIC or
// WebTransport directly, mirroring the teacher's separation between
// internal/moq (wire format) and internal/webtransport (transport).
package transport

import (
	"context"
	"io"
)

// SendStream is the write half of a unidirectional or bidirectional
// stream. SetPriority influences scheduling among streams sharing one
// session's congestion-controlled connection (spec §4.5 stream priority).
type SendStream interface {
	io.Writer
	io.Closer
	// Reset aborts the stream with an application error code instead of
	// a clean close (spec §7, producer errors visible to consumers).
	Reset(code uint32)
	SetPriority(priority int)
}

// ReceiveStream is the read half of a unidirectional or bidirectional
// stream.
type ReceiveStream interface {
	io.Reader
	// CancelRead stops further delivery from the peer with an
	// application error code (used when a subscriber drops interest).
	CancelRead(code uint32)
}

// Stream is a bidirectional stream: a control stream (Session, Announce,
// Subscribe, Fetch per spec §6) carries both directions over one object.
type Stream interface {
	SendStream
	ReceiveStream
}

// Session is one MoQ connection: a set of streams plus a lifecycle.
// webtransport.Session and memory.Session both implement it.
type Session interface {
	// OpenUni opens a new unidirectional send stream, for a Group
	// stream (spec §4.5, §6).
	OpenUni(ctx context.Context) (SendStream, error)
	// OpenBi opens a new bidirectional control stream (Announce,
	// Subscribe, Fetch).
	OpenBi(ctx context.Context) (Stream, error)
	// AcceptUni blocks until the peer opens a unidirectional stream.
	AcceptUni(ctx context.Context) (ReceiveStream, error)
	// AcceptBi blocks until the peer opens a bidirectional stream.
	AcceptBi(ctx context.Context) (Stream, error)
	// CloseWithError tears down the whole session with an application
	// error code and a human-readable reason (spec §7).
	CloseWithError(code uint32, reason string) error
	// Context is cancelled when the session closes, for either side.
	Context() context.Context
}
