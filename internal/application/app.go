// Package application assembles the test-set service from configuration.
// Both the HTTP server and the CLI start here.
package application

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JonMunkholm/testsets/internal/config"
	"github.com/JonMunkholm/testsets/internal/core"
	"github.com/JonMunkholm/testsets/internal/retry"
	"github.com/JonMunkholm/testsets/internal/store"
	"github.com/JonMunkholm/testsets/internal/store/postgres"
	"github.com/JonMunkholm/testsets/internal/store/supabase"
)

// App holds the long-lived pieces shared by every submission.
type App struct {
	Config   *config.Config
	Service  *core.Service
	Registry *prometheus.Registry

	store *store.Lazy
}

// New wires a service to a lazily opened store. No connection is made until
// the first submission.
func New(cfg *config.Config) *App {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	lazy := store.NewLazy(StoreConfig(cfg))
	policy := RetryPolicy(cfg)

	svc := core.NewService(lazy.Connect, core.ServiceConfig{
		Timeout:       cfg.Ingest.Timeout,
		MaxConcurrent: cfg.Ingest.MaxConcurrent,
		MaxWait:       cfg.Ingest.MaxWaitTime,
		Retry:         &policy,
	}, core.NewMetrics(reg))

	slog.Debug("application wired",
		"store_driver", cfg.Store.Driver,
		"max_concurrent", cfg.Ingest.MaxConcurrent,
		"max_retries", cfg.Retry.MaxRetries,
	)

	return &App{
		Config:   cfg,
		Service:  svc,
		Registry: reg,
		store:    lazy,
	}
}

// Close releases the store if one was opened.
func (a *App) Close() {
	a.store.Close()
}

// StoreConfig maps application configuration onto store settings.
func StoreConfig(cfg *config.Config) store.Config {
	return store.Config{
		Driver:      cfg.Store.Driver,
		DatabaseURL: cfg.Database.URL,
		Pool: postgres.PoolConfig{
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		},
		SQLitePath: cfg.Store.SQLitePath,
		Supabase: supabase.Config{
			URL:     cfg.Store.SupabaseURL,
			APIKey:  cfg.Store.SupabaseAPIKey,
			Schema:  cfg.Store.SupabaseSchema,
			Timeout: cfg.Store.RequestTimeout,
		},
		AutoMigrate: cfg.Store.AutoMigrate,
	}
}

// RetryPolicy builds the upsert retry policy. Only transient store errors
// are retried.
func RetryPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
		MaxDelay:   cfg.Retry.MaxDelay,
		Jitter:     cfg.Retry.Jitter,
		Retryable:  core.IsTransient,
	}
}
