package engine

// ControlStreamPriority is a fixed priority reserved for Announce and
// Subscribe streams, above every value GroupPriority can return (at
// most 0x7FFFFF) (spec §4.5). No stream in this module is given it:
// Announce and Subscribe streams are opened and accepted without a
// SetPriority call and run at the transport's default priority.
const ControlStreamPriority = 1 << 23

// GroupPriority derives a Group stream's send priority so higher-
// priority tracks beat lower ones and, within one track, newer groups
// beat older ones (spec §4.5).
func GroupPriority(trackPriority int8, sequence uint64) int {
	seq := sequence
	if seq > 0xFFFF {
		seq = 0xFFFF
	}
	return (int(trackPriority) << 16) | int(seq)
}
