package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps keys in process memory. It backs the memory persistence driver and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]Entry{}}
}

func (s *MemoryStore) Acquire(_ context.Context, claim Claim, now time.Time) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := claim.docID()
	current, found := s.entries[id]
	res, write, err := arbitrate(current, found, claim, now.UTC())
	if write {
		s.entries[id] = res.Entry
	}
	return res, err
}

func (s *MemoryStore) Complete(_ context.Context, claim Claim, resp Response, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := claim.docID()
	current, found := s.entries[id]
	entry, err := settle(current, found, claim, resp, now.UTC())
	if err != nil {
		return err
	}
	s.entries[id] = entry
	return nil
}

func (s *MemoryStore) Abandon(_ context.Context, claim Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := claim.docID()
	if current, ok := s.entries[id]; ok && abandonable(current, claim) {
		delete(s.entries, id)
	}
	return nil
}

func (s *MemoryStore) Purge(_ context.Context, now time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.entries {
		if limit > 0 && removed == limit {
			break
		}
		if entry.Expired(now.UTC()) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored keys, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
