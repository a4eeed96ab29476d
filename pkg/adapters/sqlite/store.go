// Package sqlite provides a durable OutputStore backed by a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store implements ports.OutputStore using SQLite with WAL mode.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens a SQLite database at the given path and applies the
// schema. Use ":memory:" for a throwaway database.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save upserts the output of nodeID.
func (s *Store) Save(ctx context.Context, graphID, nodeID string, output map[string]any) error {
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO node_outputs (graph_id, node_id, output, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (graph_id, node_id) DO UPDATE SET
			output = excluded.output,
			updated_at = excluded.updated_at`,
		graphID, nodeID, string(data), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save output: %w", err)
	}
	return nil
}

// Load reads the output of nodeID.
func (s *Store) Load(ctx context.Context, graphID, nodeID string) (map[string]any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT output FROM node_outputs WHERE graph_id = ? AND node_id = ?`,
		graphID, nodeID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOutputNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load output: %w", err)
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal output: %w", err)
	}
	return out, nil
}

// Delete removes the output of nodeID.
func (s *Store) Delete(ctx context.Context, graphID, nodeID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM node_outputs WHERE graph_id = ? AND node_id = ?`, graphID, nodeID)
	if err != nil {
		return fmt.Errorf("failed to delete output: %w", err)
	}
	return nil
}

// List returns the node ids stored for graphID.
func (s *Store) List(ctx context.Context, graphID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT node_id FROM node_outputs WHERE graph_id = ? ORDER BY node_id`, graphID)
	if err != nil {
		return nil, fmt.Errorf("failed to list outputs: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan node id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
