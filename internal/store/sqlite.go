package store

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/profilegate/profilegate/internal/errors"
	"github.com/profilegate/profilegate/internal/logging"
	_ "modernc.org/sqlite"
)

const asyncQueueSize = 256

// SQLiteAuditStore persists audit events in SQLite with WAL mode. It is
// safe for concurrent use.
type SQLiteAuditStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	logger *logging.Logger

	// Async writer
	queue     chan *logging.AuditEvent
	writerWG  sync.WaitGroup
	closeOnce sync.Once

	// Retention cleanup
	cleanupTicker *time.Ticker
	cleanupDone   chan struct{}
	retentionDays int
}

// NewSQLiteAuditStore opens (creating if needed) an audit database at
// dbPath. Events older than retentionDays are purged hourly; a
// non-positive retention disables cleanup.
func NewSQLiteAuditStore(dbPath string, retentionDays int) (*SQLiteAuditStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteAuditStore{
		db:            db,
		logger:        logging.NewLogger(),
		queue:         make(chan *logging.AuditEvent, asyncQueueSize),
		cleanupDone:   make(chan struct{}),
		retentionDays: retentionDays,
	}

	s.writerWG.Add(1)
	go s.runWriter()

	if retentionDays > 0 {
		s.startCleanup()
	}

	return s, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_events (
			id TEXT PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			event_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			ip_address TEXT,
			action TEXT NOT NULL,
			resource TEXT,
			status TEXT NOT NULL,
			details TEXT,
			error_message TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
		CREATE INDEX IF NOT EXISTS idx_audit_events_event_type ON audit_events(event_type);
	`)
	if err != nil {
		return &errors.ErrDatabaseOpen{Path: "audit_events schema", Err: err}
	}
	return nil
}

// SaveEvent writes an event synchronously.
func (s *SQLiteAuditStore) SaveEvent(event *logging.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var details interface{}
	if event.Details != nil {
		data, err := json.Marshal(event.Details)
		if err == nil {
			details = string(data)
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO audit_events (id, timestamp, event_type, severity, ip_address, action, resource, status, details, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.Timestamp, string(event.EventType), string(event.Severity),
		event.IPAddress, event.Action, event.Resource, string(event.Status), details, event.ErrorMessage)
	return err
}

// SaveEventAsync queues an event for the background writer. Full queue
// drops the event with a warning rather than blocking the request path.
func (s *SQLiteAuditStore) SaveEventAsync(event *logging.AuditEvent) {
	select {
	case s.queue <- event:
	default:
		s.logger.Warn("audit queue full, dropping event", "event_type", string(event.EventType), "action", event.Action)
	}
}

func (s *SQLiteAuditStore) runWriter() {
	defer s.writerWG.Done()
	for event := range s.queue {
		if err := s.SaveEvent(event); err != nil {
			s.logger.Error("failed to save audit event", "error", err.Error(), "action", event.Action)
		}
	}
}

// Recent returns up to limit events, newest first.
func (s *SQLiteAuditStore) Recent(limit int) ([]*logging.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, timestamp, event_type, severity, ip_address, action, resource, status, details, error_message
		FROM audit_events ORDER BY timestamp DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*logging.AuditEvent
	for rows.Next() {
		var event logging.AuditEvent
		var eventType, severity, status string
		var ipAddress, resource, details, errorMessage sql.NullString

		if err := rows.Scan(&event.ID, &event.Timestamp, &eventType, &severity,
			&ipAddress, &event.Action, &resource, &status, &details, &errorMessage); err != nil {
			continue
		}

		event.EventType = logging.AuditEventType(eventType)
		event.Severity = logging.AuditSeverity(severity)
		event.Status = logging.AuditStatus(status)
		event.IPAddress = ipAddress.String
		event.Resource = resource.String
		event.ErrorMessage = errorMessage.String

		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &event.Details); err != nil {
				s.logger.Warn("failed to parse audit details", "error", err.Error(), "id", event.ID)
			}
		}

		events = append(events, &event)
	}

	return events, rows.Err()
}

func (s *SQLiteAuditStore) startCleanup() {
	s.cleanupTicker = time.NewTicker(time.Hour)
	go func() {
		for {
			select {
			case <-s.cleanupTicker.C:
				s.cleanupOldEvents()
			case <-s.cleanupDone:
				return
			}
		}
	}()
}

func (s *SQLiteAuditStore) cleanupOldEvents() {
	if s.retentionDays <= 0 {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM audit_events WHERE timestamp < ?", cutoff); err != nil {
		s.logger.Error("audit cleanup failed", "error", err.Error())
	}
}

// Close drains the async queue and closes the database.
func (s *SQLiteAuditStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.cleanupTicker != nil {
			s.cleanupTicker.Stop()
			close(s.cleanupDone)
		}

		close(s.queue)
		s.writerWG.Wait()

		if s.db != nil {
			err = s.db.Close()
		}
	})
	return err
}

// Ensure SQLiteAuditStore implements the AuditStore interface
var _ AuditStore = (*SQLiteAuditStore)(nil)
