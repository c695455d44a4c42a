package audit

import (
	"context"
	"sync"
)

// MemoryStore keeps the most recent audit records in memory. It backs
// single-instance deployments and tests; production uses the Supabase
// store.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	calls   []CallRecord
	max     int
}

// NewMemoryStore creates a memory store retaining up to max records of
// each kind.
func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = 200
	}
	return &MemoryStore{max: max}
}

// WriteActivity appends an activity entry, evicting the oldest past max.
func (s *MemoryStore) WriteActivity(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	if len(s.entries) > s.max {
		s.entries = s.entries[len(s.entries)-s.max:]
	}
	return nil
}

// WriteCallLog appends a call record, evicting the oldest past max.
func (s *MemoryStore) WriteCallLog(_ context.Context, record CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, record)
	if len(s.calls) > s.max {
		s.calls = s.calls[len(s.calls)-s.max:]
	}
	return nil
}

// Entries returns a copy of the retained activity entries.
func (s *MemoryStore) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// CallRecords returns a copy of the retained call records.
func (s *MemoryStore) CallRecords() []CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CallRecord, len(s.calls))
	copy(out, s.calls)
	return out
}
