// Package mnemosyne keeps the gateway's memory: a durable, append-only
// trail of security events, and the read API that summarizes it.
package mnemosyne

import (
	"context"
	"sync"
	"time"

	"github.com/aegis-gateway/aegis/pkg/domain"
)

// Store persists security events. Writes are append-only: nothing in this
// subsystem ever mutates or deletes a stored event.
type Store interface {
	Write(ctx context.Context, event *domain.SecurityEvent) error
	// Query returns events at or after since, newest first. limit <= 0
	// means no limit.
	Query(ctx context.Context, since time.Time, limit int) ([]domain.SecurityEvent, error)
	Close() error
}

// MemoryStore keeps events in process memory, bounded to the most recent
// maxEvents. Suitable for tests and single-instance deployments that accept
// losing the trail on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	events    []domain.SecurityEvent
	maxEvents int
}

// NewMemoryStore creates an in-memory store holding up to maxEvents
// entries; maxEvents <= 0 uses a default of 10000.
func NewMemoryStore(maxEvents int) *MemoryStore {
	if maxEvents <= 0 {
		maxEvents = 10000
	}
	return &MemoryStore{maxEvents: maxEvents}
}

// Write appends the event, evicting the oldest entries past capacity.
func (s *MemoryStore) Write(ctx context.Context, event *domain.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, *event)
	if len(s.events) > s.maxEvents {
		s.events = s.events[len(s.events)-s.maxEvents:]
	}
	return nil
}

// Query returns matching events newest first.
func (s *MemoryStore) Query(ctx context.Context, since time.Time, limit int) ([]domain.SecurityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.SecurityEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Timestamp.Before(since) {
			continue
		}
		out = append(out, s.events[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
