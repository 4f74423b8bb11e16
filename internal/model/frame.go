package model

import "time"

// Frame is one timestamped, keyframe-flagged payload inside a Group
// (spec §3). Its size is known before its bytes are written, which is
// what lets CreateFrame declare a length up front.
//
// Timestamp and Keyframe exist for the in-process producer/consumer API
// only. The wire's Frame layout (spec §6: Varint(size) then payload)
// carries neither — mirroring moq-karp's layering, where the transport
// core is bytes-in-bytes-out and timing/keyframe information lives
// inside the payload codec (e.g. a LOC header) for a higher layer to
// interpret. WriteGroup and GroupReader.ReadFrame therefore only ever
// round-trip Payload; a frame written locally with Timestamp or
// Keyframe set and then read back off a relayed Group stream comes back
// with both at their zero value.
type Frame struct {
	Timestamp time.Duration
	Keyframe  bool
	Payload   []byte
}
