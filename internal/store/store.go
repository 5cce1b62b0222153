// Package store selects and opens the configured test-set store.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/JonMunkholm/testsets/internal/core"
	"github.com/JonMunkholm/testsets/internal/store/memory"
	"github.com/JonMunkholm/testsets/internal/store/postgres"
	"github.com/JonMunkholm/testsets/internal/store/sqlite"
	"github.com/JonMunkholm/testsets/internal/store/supabase"
)

// Driver names accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverSupabase = "supabase"
	DriverMemory   = "memory"
)

// Config selects a driver and carries the settings of every driver.
type Config struct {
	Driver      string
	DatabaseURL string
	Pool        postgres.PoolConfig
	SQLitePath  string
	Supabase    supabase.Config
	AutoMigrate bool
}

// Migrator is implemented by stores that can create their own schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Handle is an open store plus the function that releases it.
type Handle struct {
	Store core.Store
	close func()
}

// Close releases the store's resources.
func (h *Handle) Close() {
	if h != nil && h.close != nil {
		h.close()
	}
}

// Open constructs the store named by cfg.Driver. Every failure is a
// *core.ConfigurationError.
func Open(ctx context.Context, cfg Config) (*Handle, error) {
	h, err := open(ctx, cfg)
	if err != nil {
		return nil, &core.ConfigurationError{Err: err}
	}

	if m, ok := h.Store.(Migrator); ok && cfg.AutoMigrate {
		if err := m.Migrate(ctx); err != nil {
			h.Close()
			return nil, &core.ConfigurationError{Err: err}
		}
	}
	return h, nil
}

func open(ctx context.Context, cfg Config) (*Handle, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverPostgres, "":
		s, err := postgres.Open(ctx, cfg.DatabaseURL, cfg.Pool)
		if err != nil {
			return nil, err
		}
		return &Handle{Store: s, close: s.Close}, nil

	case DriverSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Handle{Store: s, close: func() { _ = s.Close() }}, nil

	case DriverSupabase:
		s, err := supabase.New(cfg.Supabase)
		if err != nil {
			return nil, err
		}
		return &Handle{Store: s}, nil

	case DriverMemory:
		return &Handle{Store: memory.New()}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Lazy opens the store on first use and keeps the first successful handle.
// Failed attempts are not cached, so fixing the environment takes effect on
// the next submission.
type Lazy struct {
	cfg Config

	mu     sync.Mutex
	handle *Handle
}

// NewLazy returns a connector for cfg that has not connected yet.
func NewLazy(cfg Config) *Lazy {
	return &Lazy{cfg: cfg}
}

// Connect returns the memoized store, opening it if needed.
// It satisfies core.Connector.
func (l *Lazy) Connect(ctx context.Context) (core.Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handle != nil {
		return l.handle.Store, nil
	}
	h, err := Open(ctx, l.cfg)
	if err != nil {
		return nil, err
	}
	l.handle = h
	return h.Store, nil
}

// Close releases the memoized store, if any.
func (l *Lazy) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handle.Close()
	l.handle = nil
}
