package reconcile

import (
	"database/sql"
	"fmt"
)

// StateStore persists the registrations the reconciler owns, so a restarted
// process can tell its own registry entries from external ones.
type StateStore interface {
	Load() ([]Registration, error)
	Save(registrations []Registration) error
}

// SQLiteStore keeps owned registrations in the reconciler_owned table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store backed by db. The schema is created by db.Open.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load returns every stored registration ordered by server name.
func (s *SQLiteStore) Load() ([]Registration, error) {
	rows, err := s.db.Query(`
		SELECT server_name, host, port, container_id, base_name
		FROM reconciler_owned
		ORDER BY server_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load owned servers: %w", err)
	}
	defer rows.Close()

	var out []Registration
	for rows.Next() {
		var reg Registration
		if err := rows.Scan(&reg.ServerName, &reg.Host, &reg.Port, &reg.ResourceID, &reg.BaseName); err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

// Save replaces the stored set with registrations.
func (s *SQLiteStore) Save(registrations []Registration) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM reconciler_owned`); err != nil {
		return fmt.Errorf("failed to clear owned servers: %w", err)
	}
	for _, reg := range registrations {
		_, err := tx.Exec(`
			INSERT INTO reconciler_owned (server_name, host, port, container_id, base_name)
			VALUES (?, ?, ?, ?, ?)
		`, reg.ServerName, reg.Host, reg.Port, reg.ResourceID, reg.BaseName)
		if err != nil {
			return fmt.Errorf("failed to store owned server %s: %w", reg.ServerName, err)
		}
	}
	return tx.Commit()
}
