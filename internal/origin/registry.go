package origin

import (
	"context"
	"strings"
	"sync"

	"github.com/zsiec/moq/internal/cache"
	"github.com/zsiec/moq/internal/model"
	"github.com/zsiec/moq/internal/moqerr"
)

// Registry is a path-keyed directory of currently-published broadcasts
// for one Session (spec §4.4). A single mutex guards O(1) map
// operations, per the shared-resource policy in spec §5; events is the
// append-only log every PrefixConsumer replays from.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*model.BroadcastConsumer
	events  *cache.Queue[rawEvent]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*model.BroadcastConsumer),
		events:  cache.NewQueue[rawEvent](),
	}
}

// Publish records a broadcast at path. If a broadcast already lives at
// path, the new one supersedes it: the prior announcement is withdrawn
// then re-announced, so subscribers re-resolve the path, in that order
// (spec §4.4). A background watcher deregisters the entry once bc's
// producer goes away.
func (r *Registry) Publish(path string, bc *model.BroadcastConsumer) {
	r.mu.Lock()
	_, replacing := r.entries[path]
	r.entries[path] = bc
	if replacing {
		r.events.Push(rawEvent{Path: path, Kind: Ended})
	}
	r.events.Push(rawEvent{Path: path, Kind: Active})
	r.mu.Unlock()

	go func() {
		<-bc.Closed()
		r.withdraw(path, bc)
	}()
}

func (r *Registry) withdraw(path string, bc *model.BroadcastConsumer) {
	r.mu.Lock()
	cur, ok := r.entries[path]
	changed := ok && cur == bc
	if changed {
		delete(r.entries, path)
		r.events.Push(rawEvent{Path: path, Kind: Ended})
	}
	r.mu.Unlock()
}

// Consume looks up the broadcast currently published at path.
func (r *Registry) Consume(path string) (*model.BroadcastConsumer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bc, ok := r.entries[path]
	if !ok {
		return nil, moqerr.New(moqerr.NotFound)
	}
	return bc, nil
}

// PathedBroadcast pairs a published path with its consumer, returned
// by ConsumeAll.
type PathedBroadcast struct {
	Path     string
	Consumer *model.BroadcastConsumer
}

// ConsumeAll returns a non-suspending snapshot of every currently
// published broadcast, copied under the lock in time linear in the
// number of entries (spec §4.4 supplemental, see SPEC_FULL.md §4.4).
func (r *Registry) ConsumeAll() []PathedBroadcast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PathedBroadcast, 0, len(r.entries))
	for path, bc := range r.entries {
		out = append(out, PathedBroadcast{Path: path, Consumer: bc})
	}
	return out
}

// ConsumePrefix returns a PrefixConsumer observing every broadcast path
// currently published under prefix, plus any future ones, until the
// registry itself stops producing events (spec §4.4).
func (r *Registry) ConsumePrefix(prefix string) *PrefixConsumer {
	return &PrefixConsumer{
		prefix: prefix,
		events: r.events,
		reader: r.events.NewReaderFromStart(),
	}
}

// PrefixConsumer is the read side of an announcement feed for one
// requested prefix.
type PrefixConsumer struct {
	prefix      string
	events      *cache.Queue[rawEvent]
	reader      *cache.Reader[rawEvent]
	liveEmitted bool
}

// Next returns the next announcement for this prefix: the initial
// snapshot in publish order, then exactly one Live marker, then any
// future Active/Ended transitions (spec §4.4, testable property #6).
//
// Live fires the moment this consumer's reader has caught up to
// however many events the registry has produced so far, evaluated
// lazily on each call rather than frozen at ConsumePrefix time: events
// published concurrently with the subscribe count as part of the
// initial snapshot, matching spec §8 scenario S3's "unspecified among
// concurrently-present entries" note.
func (p *PrefixConsumer) Next(ctx context.Context) (Announcement, error) {
	for {
		if !p.liveEmitted && p.reader.Pos() >= p.events.Len() {
			p.liveEmitted = true
			return Announcement{Kind: Live}, nil
		}
		ev, err := p.reader.Next(ctx)
		if err != nil {
			return Announcement{}, err
		}
		if !strings.HasPrefix(ev.Path, p.prefix) {
			continue
		}
		suffix := strings.TrimPrefix(ev.Path, p.prefix)
		return Announcement{Kind: ev.Kind, Suffix: suffix}, nil
	}
}
