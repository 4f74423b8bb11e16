// Package moq implements the wire-protocol codec for the MoQ transport
// core: variable-length integers, length-prefixed strings and byte
// blobs, extension maps, and the typed control and data messages
// exchanged over a session's bidirectional and unidirectional streams.
//
// This package contains no session, cache, or stream-engine logic;
// those higher-level concerns live in the sibling cache, model,
// origin, and engine packages.
package moq
