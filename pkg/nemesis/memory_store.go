package nemesis

import (
	"context"
	"sync"
	"time"
)

// sweepMargin keeps an expired record around briefly so a racing reader
// still sees a coherent window before the janitor reclaims it.
const sweepMargin = time.Minute

type record struct {
	count   int
	resetAt time.Time
}

// MemoryStore is a single-process Store: one mutex guarding a key→record
// table. Adequate at modest request rates; a fleet shares a RedisStore
// instead. Window resets are lazy, checked on next access; the janitor
// goroutine only reclaims memory for keys that went quiet.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*record

	now func() time.Time // injectable for tests

	sweepInterval time.Duration
	sweepStop     chan struct{}
	sweepDone     chan struct{}
}

// NewMemoryStore creates an in-process counter store and starts its janitor.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		records:       make(map[string]*record),
		now:           time.Now,
		sweepInterval: 5 * time.Minute,
		sweepStop:     make(chan struct{}),
		sweepDone:     make(chan struct{}),
	}
	go s.sweep()
	return s
}

// Incr advances the window counter for key. The mutex makes the
// read-modify-write atomic, so concurrent callers can never push the count
// past limit.
func (s *MemoryStore) Incr(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || !now.Before(rec.resetAt) {
		rec = &record{count: 1, resetAt: now.Add(window)}
		s.records[key] = rec
		return Result{Allowed: true, Remaining: limit - 1, ResetAt: rec.resetAt}, nil
	}

	if rec.count < limit {
		rec.count++
		return Result{Allowed: true, Remaining: limit - rec.count, ResetAt: rec.resetAt}, nil
	}

	// Denied: the counter stays at limit.
	return Result{Allowed: false, Remaining: 0, ResetAt: rec.resetAt}, nil
}

func (s *MemoryStore) sweep() {
	defer close(s.sweepDone)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepOnce()
		case <-s.sweepStop:
			return
		}
	}
}

func (s *MemoryStore) sweepOnce() {
	cutoff := s.now().Add(-sweepMargin)

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, rec := range s.records {
		if rec.resetAt.Before(cutoff) {
			delete(s.records, key)
		}
	}
}

// Close stops the janitor.
func (s *MemoryStore) Close() error {
	close(s.sweepStop)
	<-s.sweepDone
	return nil
}

// len reports live records, for tests.
func (s *MemoryStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
