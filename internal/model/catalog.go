package model

import (
	"context"
	"encoding/json"
)

// TrackInfo describes one track entry in a Catalog snapshot.
type TrackInfo struct {
	Priority int8 `json:"priority"`
}

// Catalog is a thin, optional convenience over the catalog
// meta-track's opaque JSON payload (spec §3 supplemental, grounded on
// moq-karp/src/catalog.rs). BroadcastProducer/BroadcastConsumer never
// require it; they only guarantee the payload is valid JSON delivered
// as single-frame groups.
type Catalog struct {
	Tracks map[string]TrackInfo `json:"tracks"`
}

// Marshal encodes the catalog as JSON, suitable for
// BroadcastProducer.PublishCatalog.
func (c Catalog) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// DecodeCatalog parses a catalog snapshot previously produced by
// Marshal.
func DecodeCatalog(data []byte) (Catalog, error) {
	var c Catalog
	err := json.Unmarshal(data, &c)
	return c, err
}

// CatalogConsumer is the read side of a broadcast's catalog meta-track
// (spec §4.3.1).
type CatalogConsumer struct {
	track *TrackConsumer
}

// NewCatalogConsumer wraps an existing TrackConsumer as a
// CatalogConsumer, for callers that obtain the catalog track through a
// different path than BroadcastConsumer.Catalog (e.g. a session
// relaying a peer-offered broadcast).
func NewCatalogConsumer(tc *TrackConsumer) *CatalogConsumer {
	return &CatalogConsumer{track: tc}
}

// Track returns the catalog's underlying TrackConsumer, for callers
// that need to treat the catalog meta-track like any other track (the
// wire-level Subscribe dispatcher, since BroadcastConsumer.Subscribe
// itself rejects the reserved catalog name).
func (c *CatalogConsumer) Track() *TrackConsumer {
	return c.track
}

// Latest returns the most recent catalog snapshot, waiting for the
// first one to be published if none exists yet. Consumers of the
// catalog always read the latest group (spec §4.3.1).
func (c *CatalogConsumer) Latest(ctx context.Context) (Catalog, error) {
	gc, ok := c.track.Latest()
	if !ok {
		var err error
		gc, err = c.track.NextGroup(ctx)
		if err != nil {
			return Catalog{}, err
		}
	}
	defer gc.Close()
	f, err := gc.ReadFrame(ctx)
	if err != nil {
		return Catalog{}, err
	}
	return DecodeCatalog(f.Payload)
}

// Close releases this catalog consumer's handle.
func (c *CatalogConsumer) Close() {
	c.track.Close()
}
