// Package sqlite stores test sets in a local SQLite database using the
// pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/JonMunkholm/testsets/internal/core"
	"github.com/JonMunkholm/testsets/internal/store/sqlbuild"
)

//go:embed schema.sql
var schema string

// Store upserts rows with INSERT ... ON CONFLICT ... RETURNING.
type Store struct {
	db   *sql.DB
	path string
}

var _ core.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path with foreign keys
// enforced. Writes go through a single connection.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("SQLITE_PATH is not set")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// DB exposes the underlying handle for inspection in tests.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the test-set tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", classify(err))
	}
	return nil
}

// Upsert writes one row and returns it as stored.
func (s *Store) Upsert(ctx context.Context, req core.UpsertRequest) (core.Persisted, error) {
	query, args, err := sqlbuild.Upsert(req, sqlbuild.Question)
	if err != nil {
		return core.Persisted{}, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return core.Persisted{}, classify(err)
	}
	defer func() { _ = rows.Close() }()

	row, err := scanOne(rows)
	if err != nil {
		return core.Persisted{}, classify(err)
	}
	id, err := sqlbuild.ToInt64(row["id"])
	if err != nil {
		return core.Persisted{}, fmt.Errorf("%s: %w", req.Table, err)
	}
	return core.Persisted{ID: id, Fields: row}, nil
}

// Count returns the number of rows in table.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, strings.ReplaceAll(table, `"`, `""`))
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func scanOne(rows *sql.Rows) (map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	row := make(map[string]any, len(cols))
	for i, c := range cols {
		row[c] = vals[i]
	}
	return row, rows.Err()
}

// classify marks busy and locked databases as transient.
func classify(err error) error {
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return core.MarkTransient(err)
		}
	}
	return err
}
