package sync2

import (
	"sync"
	"sync/atomic"
)

// Slot is a single-producer/single-consumer handoff for latest-wins
// publishing: the producer fills a private buffer and exchanges it with the
// public slot, the consumer exchanges the public slot with nil. The
// consumer only ever sees the most recently published buffer; anything it
// didn't claim in time is recycled straight back to the producer. Neither
// side ever blocks on the other - the only lock guards the free list of
// returned buffers, and is held just long enough to push or pop one entry.
type Slot[T any] struct {
	public atomic.Pointer[T]

	mu   sync.Mutex
	free []*T
}

func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{}
}

// Publish hands buf to the consumer side and returns a buffer for the
// producer to fill next: the previously published buffer if the consumer
// never claimed it, otherwise one recycled from the free list, otherwise
// nil (the producer allocates a fresh one).
func (s *Slot[T]) Publish(buf *T) *T {
	if prev := s.public.Swap(buf); prev != nil {
		return prev
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.free); n > 0 {
		b := s.free[n-1]
		s.free[n-1] = nil
		s.free = s.free[:n-1]
		return b
	}
	return nil
}

// Take claims the most recently published buffer, or nil if nothing new
// has been published since the last Take. A claimed buffer is owned by the
// consumer until passed to Return.
func (s *Slot[T]) Take() *T {
	return s.public.Swap(nil)
}

// Return gives a consumed buffer back for the producer to reuse.
func (s *Slot[T]) Return(buf *T) {
	if buf == nil {
		return
	}
	s.mu.Lock()
	s.free = append(s.free, buf)
	s.mu.Unlock()
}
