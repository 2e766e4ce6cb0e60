// Package draft stores per-project working copies in a local SQLite file so
// edits survive restarts and network outages.
package draft

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/driftboard/driftboard/internal/bridge"
)

// ErrNotFound is returned when no draft exists for a project. It aliases the
// sentinel the sync layer checks on its load path.
var ErrNotFound = bridge.ErrNoDraft

// Store is a durable key-value draft store keyed by project id.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the draft database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open draft db: %w", err)
	}

	stmt := `CREATE TABLE IF NOT EXISTS drafts (
		project_id TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		saved_at DATETIME NOT NULL
	);`
	if _, err := db.Exec(stmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("create drafts table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Read loads the draft for a project. Returns ErrNotFound when absent.
func (s *Store) Read(projectID string) (*bridge.Draft, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM drafts WHERE project_id = ?", projectID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read draft: %w", err)
	}

	var d bridge.Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &d, nil
}

// Write upserts the draft for a project.
func (s *Store) Write(projectID string, d *bridge.Draft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO drafts (project_id, data, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(project_id) DO UPDATE SET data = excluded.data, saved_at = excluded.saved_at`,
		projectID, data, d.SavedAt,
	)
	if err != nil {
		return fmt.Errorf("write draft: %w", err)
	}
	return nil
}

// Delete removes a project's draft (after a clean project close).
func (s *Store) Delete(projectID string) error {
	_, err := s.db.Exec("DELETE FROM drafts WHERE project_id = ?", projectID)
	return err
}
