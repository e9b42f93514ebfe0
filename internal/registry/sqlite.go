package registry

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// SQLite is a routing table persisted in the registry_servers and
// registry_order tables, for proxies that read their server list from disk.
type SQLite struct {
	db           *sql.DB
	orderMutable bool
}

// NewSQLite creates a table backed by db. The schema is created by db.Open.
func NewSQLite(db *sql.DB, orderMutable bool) *SQLite {
	return &SQLite{db: db, orderMutable: orderMutable}
}

// Lookup implements Port. Read errors are logged and reported as absent.
func (s *SQLite) Lookup(name string) (Endpoint, bool) {
	var ep Endpoint
	err := s.db.QueryRow(`
		SELECT host, port FROM registry_servers WHERE name = ?
	`, name).Scan(&ep.Host, &ep.Port)

	if errors.Is(err, sql.ErrNoRows) {
		return Endpoint{}, false
	}
	if err != nil {
		log.Warn().Err(err).Str("server", name).Msg("Failed to read registry entry")
		return Endpoint{}, false
	}
	return ep, true
}

// Add implements Port.
func (s *SQLite) Add(name string, ep Endpoint) error {
	if err := ValidateEndpoint(ep); err != nil {
		return err
	}

	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO registry_servers (name, host, port, updated_at)
		VALUES (?, ?, ?, ?)
	`, name, ep.Host, ep.Port, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to register server %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("server %s already registered", name)
	}
	return nil
}

// Remove implements Port.
func (s *SQLite) Remove(name string) error {
	if _, err := s.db.Exec(`DELETE FROM registry_servers WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to unregister server %s: %w", name, err)
	}
	return nil
}

// EnsurePreferred implements Port.
func (s *SQLite) EnsurePreferred(name string) (bool, error) {
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM registry_order WHERE name = ?`, name).Scan(&exists)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("failed to read preferred order: %w", err)
	}
	if !s.orderMutable {
		return false, ErrUnsupported
	}

	if _, err := s.db.Exec(`INSERT OR IGNORE INTO registry_order (name) VALUES (?)`, name); err != nil {
		return false, fmt.Errorf("failed to update preferred order: %w", err)
	}
	return true, nil
}

// Entries implements Table.
func (s *SQLite) Entries() ([]Entry, error) {
	rows, err := s.db.Query(`SELECT name, host, port FROM registry_servers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.Endpoint.Host, &e.Endpoint.Port); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PreferredOrder implements Table.
func (s *SQLite) PreferredOrder() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM registry_order ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
