package engine

import (
	"math"
	"sync"

	"github.com/zsiec/moq/internal/moq"
)

// dropCoalescer accumulates contiguous GroupDrop notifications sharing
// the same code into a single message, per spec §4.5/§9: "count
// coalesces contiguous drops with the same code". The coalesced count
// is capped at math.MaxUint32, the wire field's own width.
type dropCoalescer struct {
	mu      sync.Mutex
	pending *moq.GroupDrop
	send    func(moq.GroupDrop) error
}

func newDropCoalescer(send func(moq.GroupDrop) error) *dropCoalescer {
	return &dropCoalescer{send: send}
}

// Add records one dropped group at sequence with the given code,
// flushing any previously pending run that this drop does not extend.
func (d *dropCoalescer) Add(sequence uint64, code uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending != nil && d.pending.Code == code && d.pending.Sequence+d.pending.Count == sequence {
		if d.pending.Count < math.MaxUint32 {
			d.pending.Count++
			return nil
		}
		// Cap reached: flush the full run and start a new one at sequence.
		if err := d.send(*d.pending); err != nil {
			return err
		}
		d.pending = nil
	}

	if d.pending != nil {
		if err := d.send(*d.pending); err != nil {
			return err
		}
	}
	d.pending = &moq.GroupDrop{Sequence: sequence, Count: 1, Code: code}
	return nil
}

// Flush sends any pending coalesced run, for use when the subscription
// is ending and no further drops will arrive to extend it.
func (d *dropCoalescer) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return nil
	}
	err := d.send(*d.pending)
	d.pending = nil
	return err
}
