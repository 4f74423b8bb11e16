// Package engine implements the four MoQ stream state machines that sit
// between the wire codec (internal/moq) and a transport.Session: the
// Session, Announce, Subscribe, and Group streams (spec §4.5, §6).
//
// None of these types know about QUIC or WebTransport; they take the
// transport.Stream/SendStream/ReceiveStream interfaces and the relevant
// internal/model or internal/origin handle. That isolation generalizes
// the teacher's own split between internal/moq (wire) and
// internal/webtransport (transport) one level further.
//
// Structure is grounded on zsiec/prism's internal/distribution/moq_session.go
// (its readControlLoop/handleSubscribe/per-track write-loop shape,
// generalized from prism's fixed media tracks to the generic named-track
// model) and on okdaichi/gomoqt's TrackWriter/TrackReader/Session.Subscribe
// shapes for the group-stream read/write split.
package engine
