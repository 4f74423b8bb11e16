package model

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/zsiec/moq/internal/cache"
	"github.com/zsiec/moq/internal/moqerr"
)

// trackShared is the state a TrackProducer and every TrackConsumer
// fanned out from it share. A new TrackConsumer's reader is positioned
// at the index of the current latest group (see newTrackConsumer), so
// its first NextGroup call returns that group rather than only ones
// appended afterward (spec §3's cache retention requirement).
type trackShared struct {
	name     string
	priority int8
	groups   *cache.Queue[*GroupProducer]
	cancel   *cancelGate

	mu        sync.Mutex
	latest    *GroupProducer
	closed    bool
	closeErr  *moqerr.Error
	consumers map[*TrackConsumer]struct{}
}

// TrackProducer is the write side of one named Track within a
// Broadcast.
type TrackProducer struct {
	shared *trackShared

	mu      sync.Mutex
	lastSeq uint64
	hasSeq  bool
}

// NewTrackProducer creates a producer for a track with the given name
// and priority (spec §3). Identity within a broadcast is name alone;
// uniqueness is enforced by BroadcastProducer.CreateTrack.
func NewTrackProducer(name string, priority int8) *TrackProducer {
	return &TrackProducer{
		shared: &trackShared{
			name:      name,
			priority:  priority,
			groups:    cache.NewQueue[*GroupProducer](),
			cancel:    newCancelGate(),
			consumers: make(map[*TrackConsumer]struct{}),
		},
	}
}

// Name returns the track's name.
func (t *TrackProducer) Name() string { return t.shared.name }

// Priority returns the track's priority.
func (t *TrackProducer) Priority() int8 { return t.shared.priority }

// AppendGroup opens a new group whose sequence is one past the last
// one appended. Dropping the prior GroupProducer is not required: if
// it is still alive its stream keeps accepting frames concurrently
// (spec §4.3.2).
func (t *TrackProducer) AppendGroup() (*GroupProducer, error) {
	t.mu.Lock()
	seq := t.lastSeq
	if t.hasSeq {
		seq++
	}
	t.hasSeq = true
	t.lastSeq = seq
	t.mu.Unlock()

	g := newGroupProducer(seq)

	t.shared.mu.Lock()
	if t.shared.closed {
		t.shared.mu.Unlock()
		return nil, moqerr.New(moqerr.Cancel)
	}
	t.shared.latest = g
	t.shared.groups.Push(g)
	t.shared.mu.Unlock()
	t.trimGroups()
	return g, nil
}

// trimGroups discards groups from the queue that every attached
// TrackConsumer has already moved past. A late joiner only ever needs
// the current latest group onward (see newTrackConsumer), so the
// newest group is always kept regardless of readers; older groups
// survive only as far back as the slowest attached reader's position
// (spec §3's retention policy — bounded by live readers, not
// unbounded history).
func (t *TrackProducer) trimGroups() {
	t.shared.mu.Lock()
	keepFrom := t.shared.groups.Len() - 1
	for c := range t.shared.consumers {
		if p := c.reader.Pos(); p < keepFrom {
			keepFrom = p
		}
	}
	t.shared.mu.Unlock()
	t.shared.groups.TrimTo(keepFrom)
}

// Close marks the track finished; TrackConsumer.NextGroup drains any
// buffered groups and then returns io.EOF.
func (t *TrackProducer) Close() error {
	t.shared.mu.Lock()
	if t.shared.closed {
		t.shared.mu.Unlock()
		return nil
	}
	t.shared.closed = true
	t.shared.mu.Unlock()
	t.shared.groups.Close()
	t.shared.cancel.release()
	return nil
}

// CloseWithError fails the track with code, observable by every
// consumer as the error from their next NextGroup call (spec §4.3.4).
func (t *TrackProducer) CloseWithError(code moqerr.Code) error {
	t.shared.mu.Lock()
	if t.shared.closed {
		t.shared.mu.Unlock()
		return nil
	}
	t.shared.closed = true
	t.shared.closeErr = moqerr.New(code)
	t.shared.mu.Unlock()
	t.shared.groups.Close()
	t.shared.cancel.release()
	return nil
}

// Cancelled blocks until every TrackConsumer fanned out from this
// producer has gone away.
func (t *TrackProducer) Cancelled(ctx context.Context) error {
	return t.shared.cancel.Wait(ctx)
}

// Consumer returns a new TrackConsumer, independent of any other
// consumer fanned out from the same producer, starting at the current
// latest group.
func (t *TrackProducer) Consumer() *TrackConsumer {
	return newTrackConsumer(t.shared)
}

// TrackConsumer is the read side of one Track.
type TrackConsumer struct {
	shared    *trackShared
	reader    *cache.Reader[*GroupProducer]
	closeOnce sync.Once
}

// newTrackConsumer attaches at the track's current latest group (spec
// §3 cache retention): older groups are no longer reachable, but the
// latest one, if any, is delivered by the consumer's first NextGroup
// call rather than only groups appended from this point on.
func newTrackConsumer(s *trackShared) *TrackConsumer {
	s.cancel.addConsumer()
	s.mu.Lock()
	pos := s.groups.Len()
	if pos > 0 {
		pos--
	}
	c := &TrackConsumer{shared: s, reader: s.groups.NewReaderAt(pos)}
	s.consumers[c] = struct{}{}
	s.mu.Unlock()
	return c
}

// Name returns the track's name.
func (c *TrackConsumer) Name() string { return c.shared.name }

// Priority returns the track's priority.
func (c *TrackConsumer) Priority() int8 { return c.shared.priority }

// NextGroup returns groups as they arrive. If a newer group arrives
// while an older one is still being read, both remain accessible; the
// caller decides when to switch (spec §4.3.2).
func (c *TrackConsumer) NextGroup(ctx context.Context) (*GroupConsumer, error) {
	g, err := c.reader.Next(ctx)
	if err == nil {
		return g.Consumer(), nil
	}
	if errors.Is(err, cache.ErrClosed) {
		c.shared.mu.Lock()
		closeErr := c.shared.closeErr
		c.shared.mu.Unlock()
		if closeErr != nil {
			return nil, closeErr
		}
		return nil, io.EOF
	}
	return nil, err
}

// Latest returns the current latest group without waiting, or false
// if no group has been appended yet. Grounded on moq-karp's
// consume/track.rs non-suspending peek, used for Info's current_group
// field (spec §4.5, §6).
func (c *TrackConsumer) Latest() (*GroupConsumer, bool) {
	c.shared.mu.Lock()
	g := c.shared.latest
	c.shared.mu.Unlock()
	if g == nil {
		return nil, false
	}
	return g.Consumer(), true
}

// Close releases this consumer's handle.
func (c *TrackConsumer) Close() {
	c.closeOnce.Do(func() {
		c.shared.mu.Lock()
		delete(c.shared.consumers, c)
		c.shared.mu.Unlock()
		c.shared.cancel.removeConsumer()
	})
}
