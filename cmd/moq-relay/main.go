// Command moq-relay is a minimal example relay: it accepts
// WebTransport sessions, republishes whatever each session publishes
// into a shared origin registry, and fans that registry back out to
// every other connected session (spec.md §1's out-of-scope "relay
// binary" detail, whose per-session fan-out contract SPEC_FULL.md §2
// still requires the core to honor).
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/moq/certs"
	"github.com/zsiec/moq/internal/model"
	"github.com/zsiec/moq/internal/moqerr"
	"github.com/zsiec/moq/internal/origin"
	"github.com/zsiec/moq/session"
	"github.com/zsiec/moq/transport/webtransport"
)

var version = "dev"

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("generating self-signed certificate")
	cert, err := certs.Generate(14 * 24 * time.Hour)
	if err != nil {
		slog.Error("failed to generate cert", "error", err)
		os.Exit(1)
	}
	slog.Info("certificate generated",
		"fingerprint", cert.FingerprintBase64(),
		"expires", cert.NotAfter.Format(time.RFC3339),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	addr := envOr("MOQ_ADDR", ":4443")
	path := envOr("MOQ_PATH", "/moq")

	r := &relay{registry: origin.NewRegistry()}

	srv := webtransport.NewServer(webtransport.ServerConfig{
		Addr: addr,
		Cert: cert,
		Path: path,
	}, r.handleSession)

	slog.Info("moq-relay starting",
		"version", version,
		"addr", addr,
		"path", path,
		"cert_hash", cert.FingerprintBase64(),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// relay holds the single shared origin registry every connected
// session publishes into and consumes from (spec §4.4).
type relay struct {
	registry *origin.Registry
}

// handleSession runs for every accepted WebTransport session: it
// performs the MoQ handshake, bridges whatever the peer announces into
// the shared registry, and exposes the shared registry back to the
// peer, so publishers and subscribers discover each other regardless
// of connection order.
func (r *relay) handleSession(ctx context.Context, ws *webtransport.Session) {
	s, err := session.Accept(ctx, ws, session.DefaultVersions)
	if err != nil {
		slog.Warn("handshake failed", "error", err)
		return
	}
	slog.Info("session established", "session_id", s.ID(), "version", s.Version())

	s.PublishPrefix("", r.registry)
	go r.absorbAnnouncements(ctx, s)

	<-s.Closed()
	slog.Info("session closed", "session_id", s.ID(), "error", s.Err())
}

// absorbAnnouncements learns what this session's peer publishes and
// republishes it into the shared registry, so every other session sees
// it via its own PublishPrefix (spec §4.6's publish/consume symmetry
// applied across sessions, the relay's core fan-out contract).
func (r *relay) absorbAnnouncements(ctx context.Context, s *session.Session) {
	ann, err := s.ConsumePrefix(ctx, "")
	if err != nil {
		slog.Warn("consume_prefix failed", "error", err)
		return
	}
	for {
		a, err := ann.Next(ctx)
		if err != nil {
			return
		}
		if a.Kind != origin.Active {
			continue
		}
		go r.relayOne(ctx, s, a.Suffix)
	}
}

func (r *relay) relayOne(ctx context.Context, s *session.Session, path string) {
	rb := s.Consume(path)
	catalog, err := rb.Catalog(ctx)
	if err != nil {
		slog.Warn("catalog subscribe failed", "path", path, "error", err)
		return
	}
	defer catalog.Close()

	snapshot, err := catalog.Latest(ctx)
	if err != nil {
		slog.Warn("catalog read failed", "path", path, "error", err)
		return
	}

	bp := model.NewBroadcastProducer()
	for name, info := range snapshot.Tracks {
		tc, err := rb.Subscribe(ctx, name)
		if err != nil {
			slog.Warn("subscribe failed", "path", path, "track", name, "error", err)
			continue
		}
		tp, err := bp.CreateTrack(name, info.Priority)
		if err != nil {
			continue
		}
		go relayTrack(ctx, tp, tc)
	}

	r.registry.Publish(path, bp.Consumer())
	slog.Info("relaying broadcast", "path", path, "tracks", len(snapshot.Tracks))
}

// relayTrack copies groups from a peer-offered track into a local
// TrackProducer so the shared registry's entry stays live as long as
// the upstream subscription does.
func relayTrack(ctx context.Context, tp *model.TrackProducer, tc *model.TrackConsumer) {
	defer tp.Close()
	for {
		gc, err := tc.NextGroup(ctx)
		if err != nil {
			return
		}
		gp, err := tp.AppendGroup()
		if err != nil {
			return
		}
		for {
			f, err := gc.ReadFrame(ctx)
			if errors.Is(err, io.EOF) {
				gp.Finish()
				break
			}
			if err != nil {
				gp.Abort(moqerr.CodeOf(err))
				break
			}
			if err := gp.WriteFrame(f); err != nil {
				break
			}
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
