package session

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/moq/internal/engine"
	"github.com/zsiec/moq/internal/model"
	"github.com/zsiec/moq/internal/moq"
	"github.com/zsiec/moq/internal/moqerr"
	"github.com/zsiec/moq/internal/origin"
	"github.com/zsiec/moq/transport"
)

// DefaultVersions is the version list offered by moq-relay's cmd when
// neither side has a reason to restrict it.
var DefaultVersions = []uint64{1}

// Session is one established MoQ connection over a transport.Session:
// a negotiated version plus the local directory of broadcasts this
// side serves to its peer, and the bookkeeping that lets Consume relay
// peer-offered tracks back out as ordinary TrackConsumers (spec §4.6).
//
// Internally it runs an engine loop (accept-bi loop, accept-uni loop)
// under golang.org/x/sync/errgroup exactly as cmd/prism/main.go
// supervises its top-level servers: cancelling the group's context
// tears down every per-stream goroutine, satisfying spec §5's "session
// closure aborts them" without a bespoke task-tracking type.
type Session struct {
	id        string
	transport transport.Session
	version   uint64

	registry *origin.Registry

	mu         sync.Mutex
	remoteSubs map[uint64]*remoteSub
	nextSubID  uint64

	g         *errgroup.Group
	ctx       context.Context
	cancel    context.CancelFunc
	closedCh  chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Connect runs the client side of setup: open the Session stream, send
// ClientSetup, await ServerSetup (spec §4.6).
func Connect(ctx context.Context, t transport.Session, versions []uint64) (*Session, error) {
	stream, err := t.OpenBi(ctx)
	if err != nil {
		return nil, err
	}
	v, err := engine.ClientHandshake(ctx, stream, versions, nil)
	if err != nil {
		return nil, err
	}
	return newSession(t, v), nil
}

// Accept runs the server side of setup: await the Session stream,
// await ClientSetup, send ServerSetup (spec §4.6).
func Accept(ctx context.Context, t transport.Session, supported []uint64) (*Session, error) {
	stream, err := t.AcceptBi(ctx)
	if err != nil {
		return nil, err
	}
	v, err := engine.ServerHandshake(ctx, stream, supported, nil)
	if err != nil {
		return nil, err
	}
	return newSession(t, v), nil
}

func newSession(t transport.Session, version uint64) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	s := &Session{
		id:         uuid.NewString(),
		transport:  t,
		version:    version,
		registry:   origin.NewRegistry(),
		remoteSubs: make(map[uint64]*remoteSub),
		g:          g,
		ctx:        gctx,
		cancel:     cancel,
		closedCh:   make(chan struct{}),
	}
	g.Go(func() error { return s.acceptBiLoop(gctx) })
	g.Go(func() error { return s.acceptUniLoop(gctx) })
	go func() {
		s.closeErr = g.Wait()
		cancel()
		s.closeOnce.Do(func() { close(s.closedCh) })
	}()
	return s
}

// ID returns this session's unique identifier, stable for its lifetime.
func (s *Session) ID() string { return s.id }

// Version returns the negotiated protocol version.
func (s *Session) Version() uint64 { return s.version }

// Publish registers a broadcast at path so that the peer's future
// Subscribe/Announce streams observe it (spec §4.6).
func (s *Session) Publish(path string, bc *model.BroadcastConsumer) {
	s.registry.Publish(path, bc)
}

// PublishPrefix bulk-publishes every broadcast currently announced
// through src, mapped under prefix, and keeps relaying future
// announcements until the session closes (spec §4.6 "bulk publish of
// a sub-origin, used by relays"). src plays the role of the spec's
// OriginConsumer: it is the one type in internal/origin that exposes
// both announcement enumeration and by-path lookup, which bulk
// relaying needs.
func (s *Session) PublishPrefix(prefix string, src *origin.Registry) {
	pc := src.ConsumePrefix("")
	s.g.Go(func() error {
		for {
			ann, err := pc.Next(s.ctx)
			if err != nil {
				return nil
			}
			if ann.Kind != origin.Active {
				continue
			}
			bc, err := src.Consume(ann.Suffix)
			if err != nil {
				continue
			}
			s.registry.Publish(prefix+ann.Suffix, bc)
		}
	})
}

// Consume returns a RemoteBroadcast for path: a handle that lazily
// opens a Subscribe stream to the peer the first time each track name
// is requested (spec §4.6's "look up / lazily subscribe").
func (s *Session) Consume(path string) *RemoteBroadcast {
	return &RemoteBroadcast{
		session: s,
		path:    path,
		tracks:  make(map[string]*model.TrackConsumer),
	}
}

// ConsumePrefix opens an Announce stream and subscribes to the peer's
// announcement sequence for prefix (spec §4.6).
func (s *Session) ConsumePrefix(ctx context.Context, prefix string) (*RemoteAnnouncements, error) {
	stream, err := s.transport.OpenBi(ctx)
	if err != nil {
		return nil, err
	}
	next, err := engine.SubscribeAnnounces(ctx, stream, prefix)
	if err != nil {
		return nil, err
	}
	return &RemoteAnnouncements{next: next}, nil
}

// Close terminates the underlying transport with code (spec §7) and
// tears down every per-stream goroutine this session owns.
func (s *Session) Close(code moqerr.Code) error {
	err := s.transport.CloseWithError(uint32(code), code.String())
	s.cancel()
	return err
}

// Closed returns a channel closed once the session is gone, cleanly or
// otherwise (spec §4.6's "closed().await").
func (s *Session) Closed() <-chan struct{} {
	return s.closedCh
}

// Err returns the reason the session ended, once Closed has fired.
func (s *Session) Err() error {
	select {
	case <-s.closedCh:
		return s.closeErr
	default:
		return nil
	}
}

func (s *Session) acceptBiLoop(ctx context.Context) error {
	for {
		stream, err := s.transport.AcceptBi(ctx)
		if err != nil {
			return err
		}
		go s.dispatchBi(ctx, stream)
	}
}

func (s *Session) acceptUniLoop(ctx context.Context) error {
	for {
		recv, err := s.transport.AcceptUni(ctx)
		if err != nil {
			return err
		}
		go s.dispatchUni(recv)
	}
}

// dispatchBi reads the first message of a freshly accepted bidi stream
// to tell an Announce stream from a Subscribe stream apart, via its
// leading StreamAnnounce/StreamSubscribe tag (unlike Group streams,
// which are unidirectional and so self-identify the same way via
// StreamGroup). The stream is closed once the handler returns, whether
// that is normal completion, Unsubscribe/Cancel, or an error — matching
// the Group-stream path's defer send.Close() in group_stream.go.
func (s *Session) dispatchBi(ctx context.Context, stream transport.Stream) {
	req, err := engine.ReadControlRequest(ctx, stream)
	if err != nil {
		stream.Reset(uint32(moqerr.CodeOf(err)))
		return
	}
	defer stream.Close()
	if req.Announce != nil {
		pc := s.registry.ConsumePrefix(req.Announce.Prefix)
		_ = engine.PublishAnnounces(ctx, stream, pc)
		return
	}
	s.handleSubscribe(ctx, stream, *req.Subscribe)
}

func (s *Session) handleSubscribe(ctx context.Context, stream transport.Stream, sub moq.Subscribe) {
	broadcastPath, trackName := splitTrackPath(sub.Path)
	bc, err := s.registry.Consume(broadcastPath)
	if err != nil {
		stream.Reset(uint32(moqerr.CodeOf(err)))
		return
	}

	// The reserved catalog meta-track isn't reachable through
	// BroadcastConsumer.Subscribe, which rejects that name.
	var track *model.TrackConsumer
	if trackName == model.CatalogTrackName {
		track = bc.Catalog().Track()
	} else {
		track, err = bc.Subscribe(trackName)
		if err != nil {
			stream.Reset(uint32(moqerr.CodeOf(err)))
			return
		}
	}

	_ = engine.PublishSubscription(ctx, stream, sub.ID, track, s.openGroupStream)
}

func (s *Session) openGroupStream(ctx context.Context, priority int) (transport.SendStream, error) {
	send, err := s.transport.OpenUni(ctx)
	if err != nil {
		return nil, err
	}
	send.SetPriority(priority)
	return send, nil
}

// remoteSub is the bookkeeping kept per outstanding Subscribe we
// issued to our peer: the relay buffer incoming groups are replayed
// into, and the sequencer enforcing spec §4.5's stale-group rule over
// however those groups actually arrive.
type remoteSub struct {
	tp  *model.TrackProducer
	seq engine.GroupSequencer
}

// dispatchUni routes an incoming Group stream to the relay buffer
// backing one of our own outstanding Consume subscriptions, keyed by
// the SubscribeID carried in its header. A group whose sequence is
// stale relative to one already being read is discarded with Old
// rather than delivered (spec §4.5's stale-group rule, §8 scenario
// S5). Surviving sequence numbers are reassigned by arrival order on
// this relay buffer's own TrackProducer, since internal/model has no
// API to stamp an externally-chosen sequence onto an AppendGroup call
// (see DESIGN.md).
func (s *Session) dispatchUni(recv transport.ReceiveStream) {
	gr, err := engine.ReadGroupHeader(recv)
	if err != nil {
		return
	}
	s.mu.Lock()
	rs, ok := s.remoteSubs[gr.Header().SubscribeID]
	s.mu.Unlock()
	if !ok {
		recv.CancelRead(uint32(moqerr.NotFound))
		return
	}
	if !rs.seq.Admit(gr.Header().Sequence) {
		recv.CancelRead(uint32(moqerr.Old))
		return
	}
	gp, err := rs.tp.AppendGroup()
	if err != nil {
		return
	}
	for {
		f, err := gr.ReadFrame()
		if errors.Is(err, io.EOF) {
			gp.Finish()
			return
		}
		if err != nil {
			gp.Abort(moqerr.CodeOf(err))
			return
		}
		if err := gp.WriteFrame(f); err != nil {
			return
		}
	}
}

func (s *Session) nextSubscribeID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	return id
}

func (s *Session) openRemoteTrack(ctx context.Context, broadcastPath, trackName string) (*model.TrackConsumer, error) {
	stream, err := s.transport.OpenBi(ctx)
	if err != nil {
		return nil, err
	}
	id := s.nextSubscribeID()
	handle, err := engine.Subscribe(ctx, stream, id, joinTrackPath(broadcastPath, trackName), 0)
	if err != nil {
		return nil, err
	}

	tp := model.NewTrackProducer(trackName, handle.Info.Priority)
	s.mu.Lock()
	s.remoteSubs[id] = &remoteSub{tp: tp}
	s.mu.Unlock()

	go func() {
		<-s.ctx.Done()
		_ = handle.Unsubscribe(id)
		s.mu.Lock()
		delete(s.remoteSubs, id)
		s.mu.Unlock()
		tp.Close()
	}()

	return tp.Consumer(), nil
}

// RemoteAnnouncements is the Session-side realization of
// consume_prefix(prefix) (spec §4.6).
type RemoteAnnouncements struct {
	next func(context.Context) (origin.Announcement, error)
}

// Next returns the next announcement the peer sends for this prefix.
func (r *RemoteAnnouncements) Next(ctx context.Context) (origin.Announcement, error) {
	return r.next(ctx)
}
