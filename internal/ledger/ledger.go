// Package ledger provides an append-only audit trail of registry changes.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of event in the ledger
type EventType string

const (
	EventRegistered      EventType = "registered"
	EventUpdated         EventType = "updated"
	EventUnregistered    EventType = "unregistered"
	EventApplyFailed     EventType = "apply_failed"
	EventDiscoveryFailed EventType = "discovery_failed"
	EventPassApplied     EventType = "pass_applied"
)

// Known reports whether t is one of the event types the reconciler writes.
func (t EventType) Known() bool {
	switch t {
	case EventRegistered, EventUpdated, EventUnregistered,
		EventApplyFailed, EventDiscoveryFailed, EventPassApplied:
		return true
	}
	return false
}

// Entry represents a single event in the ledger
type Entry struct {
	ID         int64          `json:"id"`
	EventType  EventType      `json:"event_type"`
	Timestamp  time.Time      `json:"timestamp"`
	PassID     string         `json:"pass_id,omitempty"`
	ServerName string         `json:"server_name,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Ledger provides append-only event logging
type Ledger struct {
	db *sql.DB
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Append adds a new event to the ledger
func (l *Ledger) Append(eventType EventType, passID, serverName string, payload map[string]any) error {
	var payloadJSON []byte
	var err error

	if payload != nil {
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	now := time.Now().UTC().Unix()

	_, err = l.db.Exec(`
		INSERT INTO event_ledger (event_type, timestamp, pass_id, server_name, payload)
		VALUES (?, ?, ?, ?, ?)
	`, string(eventType), now, passID, serverName, string(payloadJSON))

	return err
}

// Recent returns the newest entries of any type
func (l *Ledger) Recent(limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, pass_id, server_name, payload
		FROM event_ledger
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByType returns entries filtered by event type
func (l *Ledger) GetByType(eventType EventType, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, pass_id, server_name, payload
		FROM event_ledger
		WHERE event_type = ?
		ORDER BY id DESC
		LIMIT ?
	`, string(eventType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByPass returns all entries recorded during one reconciliation pass
func (l *Ledger) GetByPass(passID string) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, pass_id, server_name, payload
		FROM event_ledger
		WHERE pass_id = ?
		ORDER BY id ASC
	`, passID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	result, err := l.db.Exec(`
		DELETE FROM event_ledger WHERE timestamp < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var payloadStr, passID, serverName sql.NullString
		var timestamp int64

		err := rows.Scan(
			&entry.ID, &entry.EventType, &timestamp, &passID, &serverName, &payloadStr,
		)
		if err != nil {
			return nil, err
		}

		entry.Timestamp = time.Unix(timestamp, 0).UTC()
		if passID.Valid {
			entry.PassID = passID.String
		}
		if serverName.Valid {
			entry.ServerName = serverName.String
		}

		if payloadStr.Valid && payloadStr.String != "" {
			entry.Payload = make(map[string]any)
			if err := json.Unmarshal([]byte(payloadStr.String), &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
