// Package sequence issues the monotonic sequence numbers stamped on
// every logged registry mutation.
package sequence

import "sync/atomic"

// Sequencer generates strictly increasing sequence IDs.
type Sequencer struct {
	last atomic.Uint64
}

// New starts after the given value: 0 on a fresh start, the last
// replayed sequence after recovery.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

// Next issues the next ID.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued ID.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// Reset moves the sequencer forward to v. It never moves backwards,
// so a replay cannot reissue IDs already handed out.
func (s *Sequencer) Reset(v uint64) {
	for {
		cur := s.last.Load()
		if v <= cur {
			return
		}
		if s.last.CompareAndSwap(cur, v) {
			return
		}
	}
}
