package ratelimit

import (
	"context"
	"sync"
	"time"
)

// CounterStore is the shared counter backing the rate limiter. Incr must
// atomically create-or-increment the counter for key within the current
// window and return the post-increment count. Implementations must never
// use separate read and write steps: two concurrent calls for the same key
// must observe distinct counts.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type memoryRecord struct {
	windowStart time.Time
	count       int64
}

// MemoryStore is an in-process CounterStore. It serves tests and
// single-instance deployments; multi-instance deployments share counters
// through the Redis store instead.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*memoryRecord
	now     func() time.Time

	sweepStop chan struct{}
	sweepOnce sync.Once
}

// NewMemoryStore creates an in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]*memoryRecord),
		now:       time.Now,
		sweepStop: make(chan struct{}),
	}
}

// Incr atomically increments the counter for key, starting a fresh window
// if none is active.
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || now.Sub(rec.windowStart) >= window {
		rec = &memoryRecord{windowStart: now}
		s.records[key] = rec
	}
	rec.count++
	return rec.count, nil
}

// StartSweep launches a background goroutine that drops expired records.
// maxAge should exceed the longest window in use.
func (s *MemoryStore) StartSweep(interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep(maxAge)
			case <-s.sweepStop:
				return
			}
		}
	}()
}

// Close stops the sweep goroutine, if running.
func (s *MemoryStore) Close() {
	s.sweepOnce.Do(func() { close(s.sweepStop) })
}

func (s *MemoryStore) sweep(maxAge time.Duration) {
	cutoff := s.now().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, rec := range s.records {
		if rec.windowStart.Before(cutoff) {
			delete(s.records, key)
		}
	}
}
