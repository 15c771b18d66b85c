package aodvv2

import "sync"

// SeqnumStore holds this node's route message sequence number. Sequence
// numbers start at 1 and wrap from 65535 back to 1; 0 is reserved to mean
// "unknown" on the wire.
type SeqnumStore struct {
	mu  sync.Mutex
	cur Seqnum
}

// NewSeqnumStore creates a store with the initial sequence number 1.
func NewSeqnumStore() *SeqnumStore {
	return &SeqnumStore{cur: 1}
}

// Get returns the current sequence number.
func (s *SeqnumStore) Get() Seqnum {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Inc advances the sequence number, skipping 0 on wraparound.
func (s *SeqnumStore) Inc() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur++
	if s.cur == 0 {
		s.cur = 1
	}
}
