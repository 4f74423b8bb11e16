// Package webtransport adapts github.com/quic-go/webtransport-go onto
// transport.Session, the same QUIC/HTTP3 stack the teacher's own
// internal/distribution/server.go wires up, generalized here to serve
// the generic session interface instead of a hardcoded media session.
package webtransport

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	wt "github.com/quic-go/webtransport-go"

	"github.com/zsiec/moq/certs"
	"github.com/zsiec/moq/internal/moqerr"
	"github.com/zsiec/moq/transport"
)

// Session adapts a *webtransport.Session to transport.Session.
type Session struct {
	ws *wt.Session
}

var _ transport.Session = (*Session)(nil)

// Wrap adapts an already-established webtransport-go session.
func Wrap(ws *wt.Session) *Session { return &Session{ws: ws} }

func (s *Session) Context() context.Context { return s.ws.Context() }

func (s *Session) OpenUni(ctx context.Context) (transport.SendStream, error) {
	ss, err := s.ws.OpenUniStreamSync(ctx)
	if err != nil {
		return nil, moqerr.Wrap(moqerr.Transport, err)
	}
	return &sendStream{ss}, nil
}

func (s *Session) AcceptUni(ctx context.Context) (transport.ReceiveStream, error) {
	rs, err := s.ws.AcceptUniStream(ctx)
	if err != nil {
		return nil, moqerr.Wrap(moqerr.Transport, err)
	}
	return &receiveStream{rs}, nil
}

func (s *Session) OpenBi(ctx context.Context) (transport.Stream, error) {
	st, err := s.ws.OpenStreamSync(ctx)
	if err != nil {
		return nil, moqerr.Wrap(moqerr.Transport, err)
	}
	return &stream{st}, nil
}

func (s *Session) AcceptBi(ctx context.Context) (transport.Stream, error) {
	st, err := s.ws.AcceptStream(ctx)
	if err != nil {
		return nil, moqerr.Wrap(moqerr.Transport, err)
	}
	return &stream{st}, nil
}

func (s *Session) CloseWithError(code uint32, reason string) error {
	return s.ws.CloseWithError(wt.SessionErrorCode(code), reason)
}

// sendStream adapts webtransport-go's SendStream.
type sendStream struct {
	ss wt.SendStream
}

func (s *sendStream) Write(p []byte) (int, error) { return s.ss.Write(p) }
func (s *sendStream) Close() error                { return s.ss.Close() }
func (s *sendStream) Reset(code uint32)           { s.ss.CancelWrite(wt.StreamErrorCode(code)) }
func (s *sendStream) SetPriority(priority int)    { s.ss.SetPriority(priority) }

// receiveStream adapts webtransport-go's ReceiveStream.
type receiveStream struct {
	rs wt.ReceiveStream
}

func (r *receiveStream) Read(p []byte) (int, error) { return r.rs.Read(p) }
func (r *receiveStream) CancelRead(code uint32)     { r.rs.CancelRead(wt.StreamErrorCode(code)) }

// stream adapts webtransport-go's bidirectional Stream.
type stream struct {
	st wt.Stream
}

func (s *stream) Read(p []byte) (int, error)  { return s.st.Read(p) }
func (s *stream) Write(p []byte) (int, error) { return s.st.Write(p) }
func (s *stream) Close() error                { return s.st.Close() }
func (s *stream) Reset(code uint32)           { s.st.CancelWrite(wt.StreamErrorCode(code)) }
func (s *stream) CancelRead(code uint32)      { s.st.CancelRead(wt.StreamErrorCode(code)) }
func (s *stream) SetPriority(priority int)    { s.st.SetPriority(priority) }

// Dial opens a client-side WebTransport session to url (e.g.
// "https://relay.example:4433/moq"). When insecureSkipVerify is true
// the server's certificate is not verified, which lets a client reach
// a relay using a self-signed certificate.
func Dial(ctx context.Context, url string, insecureSkipVerify bool) (*Session, error) {
	d := &wt.Dialer{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: insecureSkipVerify}, //nolint:gosec
	}
	_, ws, err := d.Dial(ctx, url, nil)
	if err != nil {
		return nil, moqerr.Wrap(moqerr.Transport, err)
	}
	return Wrap(ws), nil
}

// Handler is invoked once per accepted session, in its own goroutine,
// the way the teacher's handleMoQ is invoked per upgraded request.
type Handler func(ctx context.Context, sess *Session)

// ServerConfig configures Server (spec §6 ambient: a runnable listener
// for cmd/moq-relay).
type ServerConfig struct {
	Addr string
	Cert *certs.CertInfo
	Path string
	// CheckOrigin decides whether to accept a WebTransport upgrade.
	// Defaults to accepting every origin, matching the teacher's
	// development-mode default (see its SECURITY comment in server.go).
	CheckOrigin func(*http.Request) bool
}

// Server accepts WebTransport sessions over HTTP/3 and dispatches each
// to Handler, following zsiec/prism/internal/distribution/server.go's
// http3.Server{QUICConfig: ...} setup.
type Server struct {
	config  ServerConfig
	handler Handler
	wt      *wt.Server
}

// NewServer creates a Server that calls handler for every accepted
// session at config.Path.
func NewServer(config ServerConfig, handler Handler) *Server {
	return &Server{config: config, handler: handler}
}

// ListenAndServe blocks serving HTTP/3 WebTransport upgrades until ctx
// is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	path := s.config.Path
	if path == "" {
		path = "/moq"
	}
	mux.HandleFunc(path, s.handleUpgrade)

	checkOrigin := s.config.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	s.wt = &wt.Server{
		H3: http3.Server{
			Addr:    s.config.Addr,
			Handler: mux,
			TLSConfig: &tls.Config{
				Certificates: []tls.Certificate{s.config.Cert.TLSCert},
			},
			QUICConfig: &quic.Config{
				MaxIdleTimeout: 30 * time.Second,
				Allow0RTT:      true,
			},
		},
		CheckOrigin: checkOrigin,
	}

	stop := context.AfterFunc(ctx, func() { s.wt.Close() })
	defer stop()

	err := s.wt.ListenAndServe()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := s.wt.Upgrade(w, r)
	if err != nil {
		return
	}
	sess := Wrap(ws)
	s.handler(sess.Context(), sess)
}
