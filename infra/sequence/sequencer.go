package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing sequence numbers. The service
// keeps one for journal records and one for published events.
type Sequencer struct {
	last atomic.Uint64
}

// New starts after start: the first Next returns start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued number.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// Reset moves the sequencer to v. Used after snapshot load and to give
// back a number whose record was never written.
func (s *Sequencer) Reset(v uint64) {
	s.last.Store(v)
}

// Observe raises the sequencer to v if v is ahead of it. Recovery calls it
// for every journal record it replays.
func (s *Sequencer) Observe(v uint64) {
	for {
		cur := s.last.Load()
		if v <= cur || s.last.CompareAndSwap(cur, v) {
			return
		}
	}
}
