// Package db owns the PostgreSQL connection pool and hands out units of
// work to the analysis pipeline.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"

	"github.com/peakgear/pricewatch/internal/persistence"
	"github.com/peakgear/pricewatch/internal/persistence/postgres"
)

// Config holds database connection configuration.
type Config struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	Enabled         bool          `yaml:"enabled"`
}

// DefaultConfig returns reasonable defaults for database connections.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		QueryTimeout:    10 * time.Second,
		Enabled:         false, // requires explicit configuration
	}
}

// Manager manages the connection pool and vends repositories and units of
// work. When persistence is disabled the manager still constructs, so the
// collector can run without a database.
type Manager struct {
	db     *sqlx.DB
	config Config
}

// NewManager opens the pool, configures it, and verifies connectivity.
func NewManager(config Config) (*Manager, error) {
	if !config.Enabled {
		return &Manager{config: config}, nil
	}

	if config.DSN == "" {
		return nil, fmt.Errorf("database DSN is required when enabled")
	}

	db, err := sqlx.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Int("max_open_conns", config.MaxOpenConns).
		Int("max_idle_conns", config.MaxIdleConns).
		Msg("database pool ready")

	return &Manager{db: db, config: config}, nil
}

// NewManagerWithDB wraps an already-open pool. Used by tests and tools that
// manage their own connection lifecycle.
func NewManagerWithDB(pool *sqlx.DB, config Config) *Manager {
	config.Enabled = true
	return &Manager{db: pool, config: config}
}

// IsEnabled reports whether database persistence is configured.
func (m *Manager) IsEnabled() bool {
	return m.config.Enabled && m.db != nil
}

// DB returns the underlying pool (for migrations and seeds).
func (m *Manager) DB() *sqlx.DB {
	return m.db
}

// Begin opens a transaction and returns it wrapped as a unit of work.
func (m *Manager) Begin(ctx context.Context) (persistence.UnitOfWork, error) {
	if !m.IsEnabled() {
		return nil, fmt.Errorf("database persistence is disabled")
	}
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return postgres.NewUnitOfWork(tx, m.config.QueryTimeout), nil
}

// Providers returns a pool-bound provider repository, or nil when disabled.
func (m *Manager) Providers() persistence.ProviderRepo {
	if !m.IsEnabled() {
		return nil
	}
	return postgres.NewProvidersRepo(m.db, m.config.QueryTimeout)
}

// Currencies returns a pool-bound currency repository, or nil when disabled.
func (m *Manager) Currencies() persistence.CurrencyRepo {
	if !m.IsEnabled() {
		return nil
	}
	return postgres.NewCurrenciesRepo(m.db, m.config.QueryTimeout)
}

// Migrate applies the schema.
func (m *Manager) Migrate(ctx context.Context) error {
	if !m.IsEnabled() {
		return fmt.Errorf("database persistence is disabled")
	}
	return postgres.Migrate(ctx, m.db)
}

// Seed upserts reference data: the currency set and the configured
// providers with their reliability weights.
func (m *Manager) Seed(ctx context.Context, currencies []persistence.Currency, providers []persistence.Provider) error {
	if !m.IsEnabled() {
		return fmt.Errorf("database persistence is disabled")
	}
	if err := postgres.SeedCurrencies(ctx, m.db, currencies); err != nil {
		return err
	}
	return postgres.SeedProviders(ctx, m.db, providers)
}

// Ping tests basic connectivity. Disabled persistence pings clean.
func (m *Manager) Ping(ctx context.Context) error {
	if !m.IsEnabled() {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, m.config.QueryTimeout)
	defer cancel()
	return m.db.PingContext(pingCtx)
}

// Stats returns connection pool statistics for the stats endpoint.
func (m *Manager) Stats() map[string]interface{} {
	if !m.IsEnabled() {
		return map[string]interface{}{
			"enabled": false,
			"status":  "disabled",
		}
	}

	stats := m.db.Stats()
	return map[string]interface{}{
		"enabled":              true,
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

// Close releases the pool.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}
