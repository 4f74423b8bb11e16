package engine

import "sync"

// GroupSequencer enforces spec §4.5's stale-group rule on the
// subscriber side of a Subscribe stream: "if a subscriber is still
// reading group N when group N+1 arrives, both remain readable. If the
// subscriber has started N+1 and a group N' < current arrives, it is
// discarded (Old)." Group streams are independent QUIC streams and can
// be delivered out of creation order, so a receiver needs this check
// before handing an incoming group to its TrackProducer (spec §8
// scenario S5).
type GroupSequencer struct {
	mu      sync.Mutex
	current uint64
	started bool
}

// Admit reports whether the group at sequence should be delivered. It
// is the one point of truth for "current": once a higher sequence has
// been admitted, anything lower is stale.
func (s *GroupSequencer) Admit(sequence uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started && sequence < s.current {
		return false
	}
	s.current = sequence
	s.started = true
	return true
}
