// Package session implements the Session component (spec §4.6): the
// handshake, the directory of broadcasts this side serves to its peer,
// and the engine loop that accepts incoming streams and dispatches
// them to internal/engine's per-stream state machines.
//
// Grounded on zsiec/prism's internal/distribution/server.go (the
// http3.Server plus per-session goroutine dispatch shape) and
// moq_session.go (control-loop-plus-subscription-map shape),
// generalized from prism's fixed video/audio/caption/stats tracks to
// arbitrary named tracks routed through internal/origin, and on
// moq-relay/src/connection.rs (original_source) for the Connect/Accept
// symmetry and the closed().await future.
package session
