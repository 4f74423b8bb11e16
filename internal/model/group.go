package model

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/zsiec/moq/internal/cache"
	"github.com/zsiec/moq/internal/moqerr"
)

// GroupProducer is the write side of one Group: an independently
// decodable span of a Track identified by a monotonically increasing
// sequence (spec §3, §4.3.3).
type GroupProducer struct {
	sequence uint64
	queue    *cache.Queue[Frame]
	cancel   *cancelGate

	mu      sync.Mutex
	writing bool
	done    bool
	doneErr *moqerr.Error // nil on a clean Finish
}

func newGroupProducer(sequence uint64) *GroupProducer {
	return &GroupProducer{
		sequence: sequence,
		queue:    cache.NewQueue[Frame](),
		cancel:   newCancelGate(),
	}
}

// Sequence returns the group's sequence number.
func (g *GroupProducer) Sequence() uint64 {
	return g.sequence
}

// WriteFrame appends a complete frame, for callers that already hold
// the whole payload in memory (spec §4.3.3 supplemental convenience,
// grounded on moq-karp's media producer).
func (g *GroupProducer) WriteFrame(f Frame) error {
	fw, err := g.CreateFrame(len(f.Payload), f.Timestamp, f.Keyframe)
	if err != nil {
		return err
	}
	if _, err := fw.Write(f.Payload); err != nil {
		return err
	}
	return fw.Close()
}

// CreateFrame opens a frame of the declared size, enabling pipelined
// writes without the caller needing to assemble the whole payload up
// front. Only one FrameWriter may be open at a time per group.
func (g *GroupProducer) CreateFrame(size int, timestamp time.Duration, keyframe bool) (*FrameWriter, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return nil, moqerr.New(moqerr.Cancel)
	}
	if g.writing {
		return nil, moqerr.New(moqerr.ProtocolViolation)
	}
	g.writing = true
	return &FrameWriter{
		group:     g,
		size:      size,
		timestamp: timestamp,
		keyframe:  keyframe,
		buf:       make([]byte, 0, size),
	}, nil
}

func (g *GroupProducer) frameWriterClosed() {
	g.mu.Lock()
	g.writing = false
	g.mu.Unlock()
}

// Finish marks the group complete; its queue is closed cleanly so
// consumers see io.EOF once they drain the last frame.
func (g *GroupProducer) Finish() error {
	g.mu.Lock()
	if g.done {
		g.mu.Unlock()
		return nil
	}
	g.done = true
	g.mu.Unlock()
	g.queue.Close()
	g.cancel.release()
	return nil
}

// Abort fails the group with code, observable by every consumer as the
// error returned from their next ReadFrame (spec §4.3.4).
func (g *GroupProducer) Abort(code moqerr.Code) error {
	g.mu.Lock()
	if g.done {
		g.mu.Unlock()
		return nil
	}
	g.done = true
	g.doneErr = moqerr.New(code)
	g.mu.Unlock()
	g.queue.Close()
	g.cancel.release()
	return nil
}

// FrameCount returns the number of frames written so far, for logging
// and ordering decisions (spec §4.3.3).
func (g *GroupProducer) FrameCount() int {
	return g.queue.Len()
}

// Cancelled blocks until every Consumer of this group has gone away,
// letting the producer voluntarily stop work (spec §3, §4.2).
func (g *GroupProducer) Cancelled(ctx context.Context) error {
	return g.cancel.Wait(ctx)
}

// Consumer returns a new GroupConsumer sharing this group's frames
// from the beginning: every consumer of a group sees every frame
// (spec §4.2's lazy sequence, head-start reader policy).
func (g *GroupProducer) Consumer() *GroupConsumer {
	g.cancel.addConsumer()
	return &GroupConsumer{group: g, reader: g.queue.NewReaderFromStart()}
}

// GroupConsumer is the read side of one Group.
type GroupConsumer struct {
	group     *GroupProducer
	reader    *cache.Reader[Frame]
	closeOnce sync.Once
}

// Sequence returns the group's sequence number.
func (c *GroupConsumer) Sequence() uint64 {
	return c.group.Sequence()
}

// FrameCount returns the number of frames written to the group so far.
func (c *GroupConsumer) FrameCount() int {
	return c.group.FrameCount()
}

// ReadFrame returns the next complete frame. If a frame is still being
// written, ReadFrame waits for its final byte; there is no partial
// delivery (spec §3, §4.3.3). It returns io.EOF once the producer has
// Finished cleanly, or the producer's *moqerr.Error if it Aborted. If
// ctx is already done it returns ctx.Err() without consuming a frame.
func (c *GroupConsumer) ReadFrame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	f, err := c.reader.Next(ctx)
	if err == nil {
		return f, nil
	}
	if errors.Is(err, cache.ErrClosed) {
		c.group.mu.Lock()
		doneErr := c.group.doneErr
		c.group.mu.Unlock()
		if doneErr != nil {
			return Frame{}, doneErr
		}
		return Frame{}, io.EOF
	}
	return Frame{}, err
}

// Close releases this consumer's handle. Once every consumer of a
// group has closed, the producer's Cancelled wait unblocks.
func (c *GroupConsumer) Close() {
	c.closeOnce.Do(func() { c.group.cancel.removeConsumer() })
}

// FrameWriter writes one frame of a declared size, piece by piece,
// without the caller needing to buffer the whole payload (spec §4.3.3).
type FrameWriter struct {
	group     *GroupProducer
	size      int
	timestamp time.Duration
	keyframe  bool
	buf       []byte
	closed    bool
}

// Write appends p to the frame. Writing past the declared size fails
// the whole group with WrongSize immediately.
func (w *FrameWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, moqerr.New(moqerr.ProtocolViolation)
	}
	if len(w.buf)+len(p) > w.size {
		w.closed = true
		w.group.frameWriterClosed()
		w.group.Abort(moqerr.WrongSize)
		return 0, moqerr.New(moqerr.WrongSize)
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// Close finalizes the frame. Writing fewer bytes than declared before
// Close fails the whole group with WrongSize (spec §4.3.3); writing
// exactly the declared size publishes the frame to every consumer.
func (w *FrameWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.group.frameWriterClosed()
	if len(w.buf) != w.size {
		w.group.Abort(moqerr.WrongSize)
		return moqerr.New(moqerr.WrongSize)
	}
	w.group.queue.Push(Frame{Timestamp: w.timestamp, Keyframe: w.keyframe, Payload: w.buf})
	return nil
}
