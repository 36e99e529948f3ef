// Package queue provides small ordering primitives shared by the consensus
// and execution components.
package queue

// Sequencer is an ordered completion buffer: results for sequence numbers may
// arrive in any order, but are only released strictly head-first. It is the
// piece that lets checkpoint execution run concurrently while watermark
// advancement stays sequential.
//
// Sequencer is not safe for concurrent use; the executor's event loop is its
// single owner.
type Sequencer struct {
	next     uint64
	buffered map[uint64]interface{}
}

// NewSequencer creates a Sequencer that will release results starting at the
// given sequence number.
func NewSequencer(next uint64) *Sequencer {
	return &Sequencer{
		next:     next,
		buffered: make(map[uint64]interface{}),
	}
}

// Push buffers the result for a sequence number. Pushing a sequence below the
// release head or pushing the same sequence twice indicates the caller
// scheduled a sequence twice, which must never happen.
func (s *Sequencer) Push(seq uint64, result interface{}) {
	if seq < s.next {
		panic("sequencer: result pushed below release head")
	}
	if _, exists := s.buffered[seq]; exists {
		panic("sequencer: duplicate result for sequence")
	}
	s.buffered[seq] = result
}

// Pop returns the result for the next sequence number in order, or false if
// it has not arrived yet. Results that completed early stay buffered until
// their predecessors are popped.
func (s *Sequencer) Pop() (interface{}, bool) {
	result, ok := s.buffered[s.next]
	if !ok {
		return nil, false
	}
	delete(s.buffered, s.next)
	s.next++
	return result, true
}

// Next returns the sequence number Pop will release next.
func (s *Sequencer) Next() uint64 {
	return s.next
}

// Buffered returns the number of results waiting for their predecessors.
func (s *Sequencer) Buffered() int {
	return len(s.buffered)
}
