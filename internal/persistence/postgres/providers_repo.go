package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/peakgear/pricewatch/internal/persistence"
)

const providerColumns = `id, name, slug, base_url, rating, review_count, is_verified, is_active, country, reliability_score, data_quality_score, created_at, updated_at`

// providersRepo implements ProviderRepo for PostgreSQL.
type providersRepo struct {
	db      sqlx.ExtContext
	timeout time.Duration
}

// NewProvidersRepo creates a provider repository over a DB or transaction.
func NewProvidersRepo(db sqlx.ExtContext, timeout time.Duration) persistence.ProviderRepo {
	return &providersRepo{db: db, timeout: timeout}
}

func (r *providersRepo) All(ctx context.Context) ([]persistence.Provider, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ` + providerColumns + `
		FROM providers
		WHERE is_active = true
		ORDER BY id`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query providers: %w", err)
	}
	defer rows.Close()

	var providers []persistence.Provider
	for rows.Next() {
		var p persistence.Provider
		if err := rows.StructScan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

func (r *providersRepo) BySlug(ctx context.Context, slug string) (*persistence.Provider, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ` + providerColumns + `
		FROM providers
		WHERE slug = $1`

	var p persistence.Provider
	if err := r.db.QueryRowxContext(ctx, query, slug).StructScan(&p); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get provider by slug: %w", err)
	}
	return &p, nil
}

func (r *providersRepo) SlugIndex(ctx context.Context) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT slug, id
		FROM providers
		WHERE is_active = true`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider slugs: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int64)
	for rows.Next() {
		var (
			slug string
			id   int64
		)
		if err := rows.Scan(&slug, &id); err != nil {
			return nil, fmt.Errorf("failed to scan provider slug: %w", err)
		}
		index[slug] = id
	}
	return index, rows.Err()
}
