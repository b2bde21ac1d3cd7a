package store

import (
	"sync"

	"github.com/profilegate/profilegate/internal/logging"
)

// MemoryAuditStore keeps audit events in memory. Used in tests and when
// auditing is disabled in configuration.
type MemoryAuditStore struct {
	mu     sync.RWMutex
	events []*logging.AuditEvent
}

// NewMemoryAuditStore creates an empty in-memory audit store.
func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

// SaveEvent appends an event.
func (s *MemoryAuditStore) SaveEvent(event *logging.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// SaveEventAsync appends an event. The memory store has no writer
// goroutine so this is the same as SaveEvent.
func (s *MemoryAuditStore) SaveEventAsync(event *logging.AuditEvent) {
	_ = s.SaveEvent(event)
}

// Recent returns up to limit events, newest first.
func (s *MemoryAuditStore) Recent(limit int) ([]*logging.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}

	events := make([]*logging.AuditEvent, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(events) < limit; i-- {
		events = append(events, s.events[i])
	}
	return events, nil
}

// Close is a no-op.
func (s *MemoryAuditStore) Close() error {
	return nil
}

// Ensure MemoryAuditStore implements the AuditStore interface
var _ AuditStore = (*MemoryAuditStore)(nil)
