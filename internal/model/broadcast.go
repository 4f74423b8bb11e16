package model

import (
	"context"
	"sync"

	"github.com/zsiec/moq/internal/moqerr"
)

// CatalogTrackName is the reserved track name carrying a broadcast's
// JSON catalog snapshots (spec §3, §4.3.1, §9 "catalog as just
// another track").
const CatalogTrackName = ".catalog"

type broadcastShared struct {
	mu       sync.Mutex
	tracks   map[string]*TrackProducer
	catalog  *TrackProducer
	cancel   *cancelGate
	closed   bool
	closeErr *moqerr.Error
	closedCh chan struct{}
}

// BroadcastProducer is the write side of a Broadcast: a named
// collection of tracks plus the implicit catalog meta-track.
type BroadcastProducer struct {
	shared *broadcastShared
}

// NewBroadcastProducer creates an empty broadcast (spec §4.3.1).
func NewBroadcastProducer() *BroadcastProducer {
	return &BroadcastProducer{
		shared: &broadcastShared{
			tracks:   make(map[string]*TrackProducer),
			catalog:  NewTrackProducer(CatalogTrackName, 0),
			cancel:   newCancelGate(),
			closedCh: make(chan struct{}),
		},
	}
}

// CreateTrack registers a track and returns its producer. Calling
// twice with the same name is a Duplicate error; the reserved catalog
// name cannot be created directly.
func (b *BroadcastProducer) CreateTrack(name string, priority int8) (*TrackProducer, error) {
	if name == CatalogTrackName {
		return nil, moqerr.New(moqerr.Duplicate)
	}
	b.shared.mu.Lock()
	defer b.shared.mu.Unlock()
	if b.shared.closed {
		return nil, moqerr.New(moqerr.Cancel)
	}
	if _, exists := b.shared.tracks[name]; exists {
		return nil, moqerr.New(moqerr.Duplicate)
	}
	tp := NewTrackProducer(name, priority)
	b.shared.tracks[name] = tp
	return tp, nil
}

// RemoveTrack unregisters a track and closes its producer. It is a
// no-op if no such track exists.
func (b *BroadcastProducer) RemoveTrack(name string) {
	b.shared.mu.Lock()
	tp, ok := b.shared.tracks[name]
	delete(b.shared.tracks, name)
	b.shared.mu.Unlock()
	if ok {
		tp.Close()
	}
}

// PublishCatalog writes one complete JSON snapshot as a single-frame
// group on the catalog meta-track (spec §4.3.1). The core never
// inspects snapshot's contents; Catalog.Marshal is an optional helper
// for producing it.
func (b *BroadcastProducer) PublishCatalog(snapshot []byte) error {
	g, err := b.shared.catalog.AppendGroup()
	if err != nil {
		return err
	}
	if err := g.WriteFrame(Frame{Payload: snapshot}); err != nil {
		return err
	}
	return g.Finish()
}

// Close marks every track, including the catalog, finished cleanly.
func (b *BroadcastProducer) Close() error {
	b.shared.mu.Lock()
	if b.shared.closed {
		b.shared.mu.Unlock()
		return nil
	}
	b.shared.closed = true
	tracks := make([]*TrackProducer, 0, len(b.shared.tracks))
	for _, tp := range b.shared.tracks {
		tracks = append(tracks, tp)
	}
	b.shared.mu.Unlock()

	for _, tp := range tracks {
		tp.Close()
	}
	b.shared.catalog.Close()
	b.shared.cancel.release()
	close(b.shared.closedCh)
	return nil
}

// CloseWithError fails every track with code (spec §4.3.4).
func (b *BroadcastProducer) CloseWithError(code moqerr.Code) error {
	b.shared.mu.Lock()
	if b.shared.closed {
		b.shared.mu.Unlock()
		return nil
	}
	b.shared.closed = true
	b.shared.closeErr = moqerr.New(code)
	tracks := make([]*TrackProducer, 0, len(b.shared.tracks))
	for _, tp := range b.shared.tracks {
		tracks = append(tracks, tp)
	}
	b.shared.mu.Unlock()

	for _, tp := range tracks {
		tp.CloseWithError(code)
	}
	b.shared.catalog.CloseWithError(code)
	b.shared.cancel.release()
	close(b.shared.closedCh)
	return nil
}

// Cancelled blocks until every BroadcastConsumer fanned out from this
// producer has gone away.
func (b *BroadcastProducer) Cancelled(ctx context.Context) error {
	return b.shared.cancel.Wait(ctx)
}

// Consumer returns a new BroadcastConsumer.
func (b *BroadcastProducer) Consumer() *BroadcastConsumer {
	b.shared.cancel.addConsumer()
	return &BroadcastConsumer{shared: b.shared}
}

// BroadcastConsumer is the read side of a Broadcast.
type BroadcastConsumer struct {
	shared    *broadcastShared
	closeOnce sync.Once
}

// Subscribe returns a TrackConsumer for name, or NotFound if no such
// track currently exists (spec §4.3.1).
func (c *BroadcastConsumer) Subscribe(name string) (*TrackConsumer, error) {
	c.shared.mu.Lock()
	tp, ok := c.shared.tracks[name]
	c.shared.mu.Unlock()
	if !ok {
		return nil, moqerr.New(moqerr.NotFound)
	}
	return tp.Consumer(), nil
}

// Catalog returns a consumer for the reserved catalog meta-track.
func (c *BroadcastConsumer) Catalog() *CatalogConsumer {
	return &CatalogConsumer{track: c.shared.catalog.Consumer()}
}

// Closed returns a channel closed once the producer has gone away
// (cleanly or with an error), letting a watcher like the origin
// registry react without polling (spec §4.3.4's "closed future").
func (c *BroadcastConsumer) Closed() <-chan struct{} {
	return c.shared.closedCh
}

// Err returns the producer's close code once Closed has fired, or nil
// if it closed cleanly.
func (c *BroadcastConsumer) Err() *moqerr.Error {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()
	return c.shared.closeErr
}

// Close releases this consumer's handle.
func (c *BroadcastConsumer) Close() {
	c.closeOnce.Do(func() { c.shared.cancel.removeConsumer() })
}
