// Package store persists audit events. The SQLite implementation is the
// production store; the memory implementation backs tests and setups that
// disable auditing.
package store

import "github.com/profilegate/profilegate/internal/logging"

// AuditStore persists audit events and serves recent history.
type AuditStore interface {
	// SaveEvent writes an event synchronously.
	SaveEvent(event *logging.AuditEvent) error

	// SaveEventAsync queues an event for a background writer. Events may
	// be dropped if the queue is full; auditing never blocks request
	// handling.
	SaveEventAsync(event *logging.AuditEvent)

	// Recent returns up to limit events, newest first.
	Recent(limit int) ([]*logging.AuditEvent, error)

	// Close flushes pending events and releases resources.
	Close() error
}
