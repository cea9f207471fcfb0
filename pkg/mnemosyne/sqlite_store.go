package mnemosyne

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/aegis-gateway/aegis/pkg/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS security_events (
	id         TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	user_id    TEXT,
	details    TEXT,
	ip         TEXT,
	user_agent TEXT,
	timestamp  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_security_events_timestamp ON security_events(timestamp);
`

// SQLiteStore persists events to a local SQLite database, giving a
// single-node deployment a trail that survives restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the
// schema. WAL mode keeps the writer goroutine from blocking readers.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	// A single writer avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply audit schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Write inserts one event.
func (s *SQLiteStore) Write(ctx context.Context, event *domain.SecurityEvent) error {
	var details []byte
	if event.Details != nil {
		var err error
		details, err = json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal event details: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO security_events (id, event_type, user_id, details, ip, user_agent, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, string(event.Type), event.UserID, string(details),
		event.IP, event.UserAgent, event.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert security event: %w", err)
	}
	return nil
}

// Query returns matching events newest first.
func (s *SQLiteStore) Query(ctx context.Context, since time.Time, limit int) ([]domain.SecurityEvent, error) {
	q := `SELECT id, event_type, user_id, details, ip, user_agent, timestamp
	      FROM security_events WHERE timestamp >= ? ORDER BY timestamp DESC`
	args := []any{since.UTC()}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}
	defer rows.Close()

	var events []domain.SecurityEvent
	for rows.Next() {
		var ev domain.SecurityEvent
		var eventType, details string
		if err := rows.Scan(&ev.ID, &eventType, &ev.UserID, &details, &ev.IP, &ev.UserAgent, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		ev.Type = domain.EventType(eventType)
		if details != "" {
			if err := json.Unmarshal([]byte(details), &ev.Details); err != nil {
				// Corrupt details don't invalidate the event itself.
				ev.Details = map[string]any{"raw": details}
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate security events: %w", err)
	}
	return events, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
