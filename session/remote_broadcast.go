package session

import (
	"context"
	"sync"

	"github.com/zsiec/moq/internal/model"
)

// RemoteBroadcast is the Session-side realization of consume(path)
// (spec §4.6): a broadcast whose track set lives on the peer and is
// discovered lazily, one Subscribe stream per requested track name,
// unlike a local BroadcastConsumer whose track set was announced
// upfront via CreateTrack.
type RemoteBroadcast struct {
	session *Session
	path    string

	mu     sync.Mutex
	tracks map[string]*model.TrackConsumer
}

// Subscribe resolves name to a TrackConsumer, opening a new Subscribe
// stream to the peer the first time name is requested and reusing the
// same relay buffer for every subsequent caller (spec §4.6).
func (r *RemoteBroadcast) Subscribe(ctx context.Context, name string) (*model.TrackConsumer, error) {
	r.mu.Lock()
	if tc, ok := r.tracks[name]; ok {
		r.mu.Unlock()
		return tc, nil
	}
	r.mu.Unlock()

	tc, err := r.session.openRemoteTrack(ctx, r.path, name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.tracks[name]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.tracks[name] = tc
	r.mu.Unlock()
	return tc, nil
}

// Catalog subscribes to the broadcast's reserved catalog meta-track.
func (r *RemoteBroadcast) Catalog(ctx context.Context) (*model.CatalogConsumer, error) {
	tc, err := r.Subscribe(ctx, model.CatalogTrackName)
	if err != nil {
		return nil, err
	}
	return model.NewCatalogConsumer(tc), nil
}
