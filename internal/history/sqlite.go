// Package history implements the operation-history log backends.
package history

import (
	"database/sql"
	"fmt"

	"blogback/internal/blog"
	"blogback/internal/history/migrations"
	"blogback/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteHistory records operations in a SQLite database.
type SQLiteHistory struct {
	db    *sql.DB
	clock blog.Clock
	path  string
}

// NewSQLiteHistory opens (or creates) the history database at path and
// brings its schema up to date. path can be ":memory:" for tests.
func NewSQLiteHistory(path string, clock blog.Clock) (*SQLiteHistory, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating history database: %w", err)
	}

	return &SQLiteHistory{db: db, clock: clock, path: path}, nil
}

// Begin records the start of an operation and returns its id.
func (h *SQLiteHistory) Begin(operation, archive string) (int64, error) {
	result, err := h.db.Exec(
		`INSERT INTO operations (operation, archive, status, started_at) VALUES (?, ?, 'running', ?)`,
		operation, archive, h.clock.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("recording operation start: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading operation id: %w", err)
	}
	return id, nil
}

// Finish marks an operation finished with the given status and message.
func (h *SQLiteHistory) Finish(id int64, status, message string) error {
	result, err := h.db.Exec(
		`UPDATE operations SET status = ?, message = ?, finished_at = ? WHERE id = ?`,
		status, message, h.clock.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("recording operation finish: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking operation update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: operation %d", blog.ErrNotFound, id)
	}
	return nil
}

// List returns the most recent operations, newest first. A limit of
// zero or less means no limit.
func (h *SQLiteHistory) List(limit int) ([]*model.Operation, error) {
	if limit <= 0 {
		limit = -1 // SQLite: LIMIT -1 disables the limit
	}
	rows, err := h.db.Query(
		`SELECT id, operation, archive, status, message, started_at, finished_at
		 FROM operations ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*model.Operation
	for rows.Next() {
		var op model.Operation
		var finished sql.NullTime
		if err := rows.Scan(&op.ID, &op.Operation, &op.Archive, &op.Status, &op.Message, &op.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			op.FinishedAt = &t
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operations: %w", err)
	}
	return ops, nil
}

// Close closes the history database.
func (h *SQLiteHistory) Close() error {
	return h.db.Close()
}

// Compile-time check that SQLiteHistory implements blog.History
var _ blog.History = (*SQLiteHistory)(nil)
