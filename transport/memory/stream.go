package memory

import (
	"io"
	"sync/atomic"
)

// newPipe returns an io.Pipe pair, used by both OpenUni/OpenBi to back
// one logical data direction.
func newPipe() (*io.PipeReader, *io.PipeWriter) {
	return io.Pipe()
}

// sendStream is the write half of a memory-transport stream.
type sendStream struct {
	pw       *io.PipeWriter
	priority atomic.Int64
}

func (s *sendStream) Write(p []byte) (int, error) { return s.pw.Write(p) }

func (s *sendStream) Close() error { return s.pw.Close() }

func (s *sendStream) Reset(code uint32) { s.pw.CloseWithError(&ResetError{Code: code}) }

func (s *sendStream) SetPriority(priority int) { s.priority.Store(int64(priority)) }

// receiveStream is the read half of a memory-transport stream.
type receiveStream struct {
	pr *io.PipeReader
}

func (r *receiveStream) Read(p []byte) (int, error) { return r.pr.Read(p) }

func (r *receiveStream) CancelRead(code uint32) { r.pr.CloseWithError(&ResetError{Code: code}) }

// bidiStream combines a send and a receive half into one transport.Stream.
type bidiStream struct {
	sendStream
	receiveStream
}

var _ io.ReadWriteCloser = (*bidiStream)(nil)
