// Package postgres stores test sets in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/testsets/internal/core"
	"github.com/JonMunkholm/testsets/internal/store/sqlbuild"
)

//go:embed schema.sql
var schema string

// Schema returns the DDL applied by Migrate.
func Schema() string { return schema }

// DBTX is the subset of pgx shared by pools, connections and transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PoolConfig sizes the connection pool. Zero values keep pgx defaults.
type PoolConfig struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store upserts rows with INSERT ... ON CONFLICT ... RETURNING.
type Store struct {
	db   DBTX
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// New wraps an existing connection, pool or transaction.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// Open connects a pool to url and verifies it with a ping.
func Open(ctx context.Context, url string, cfg PoolConfig) (*Store, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: pool, pool: pool}, nil
}

// Close releases the pool, if the store owns one.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the test-set tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", classify(err))
	}
	return nil
}

// Upsert writes one row and returns it as stored. After a row written with
// an explicit id the table's identity sequence is moved past it, so later
// inserts without an id do not collide.
func (s *Store) Upsert(ctx context.Context, req core.UpsertRequest) (core.Persisted, error) {
	query, args, err := sqlbuild.Upsert(req, sqlbuild.Dollar)
	if err != nil {
		return core.Persisted{}, err
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return core.Persisted{}, classify(err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToMap)
	if err != nil {
		return core.Persisted{}, classify(err)
	}

	id, err := sqlbuild.ToInt64(row["id"])
	if err != nil {
		return core.Persisted{}, fmt.Errorf("%s: %w", req.Table, err)
	}

	if _, explicit := req.Value("id"); explicit {
		if _, err := s.db.Exec(ctx, sqlbuild.SyncSequence(req.Table)); err != nil {
			return core.Persisted{}, fmt.Errorf("sync %s id sequence: %w", req.Table, classify(err))
		}
	}
	return core.Persisted{ID: id, Fields: row}, nil
}

// classify marks failures a retry may clear as transient.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if transientCode(pgErr.Code) {
			return core.MarkTransient(err)
		}
		return err
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return core.MarkTransient(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return core.MarkTransient(err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return core.MarkTransient(err)
	}
	return err
}

// transientCode reports SQLSTATEs for connection loss, resource exhaustion,
// serialization failures and deadlocks.
func transientCode(code string) bool {
	switch {
	case strings.HasPrefix(code, "08"): // connection exception
		return true
	case strings.HasPrefix(code, "53"): // insufficient resources
		return true
	case code == "40001", code == "40P01": // serialization failure, deadlock
		return true
	case code == "57P01", code == "57P02", code == "57P03": // shutdown, cannot connect now
		return true
	}
	return false
}
