package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the collection in a single table. SaveAll rewrites the
// table inside one transaction, matching the whole-collection contract.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Reasonable pragmas for an app server
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// ApplyMigrations ensures schema exists
func (s *SQLiteStore) ApplyMigrations(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS tarefas (
	pos INTEGER NOT NULL,
	id TEXT PRIMARY KEY,
	descricao TEXT NOT NULL,
	completa INTEGER NOT NULL DEFAULT 0
);
	`)
	return err
}

func (s *SQLiteStore) LoadAll(ctx context.Context) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, descricao, completa
		FROM tarefas
		ORDER BY pos ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Descricao, &t.Completa); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrStoreUnavailable, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %w", ErrStoreUnavailable, err)
	}
	return out, nil
}

func (s *SQLiteStore) SaveAll(ctx context.Context, tasks []Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tarefas`); err != nil {
		return fmt.Errorf("%w: clear: %w", ErrStoreUnavailable, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tarefas (pos, id, descricao, completa)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %w", ErrStoreUnavailable, err)
	}
	defer stmt.Close()

	for i, t := range tasks {
		if _, err := stmt.ExecContext(ctx, i, t.ID, t.Descricao, t.Completa); err != nil {
			return fmt.Errorf("%w: insert %s: %w", ErrStoreUnavailable, t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Helper to build DSN like: file:/absolute/path?_pragma=busy_timeout(5000)
func SQLiteFileDSN(path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return "file:" + filepath.ToSlash(abs) + "?_pragma=busy_timeout(5000)", nil
}
