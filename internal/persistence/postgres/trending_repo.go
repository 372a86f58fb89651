package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/peakgear/pricewatch/internal/persistence"
)

// trendingRepo implements TrendingRepo for PostgreSQL.
type trendingRepo struct {
	db      sqlx.ExtContext
	timeout time.Duration
}

// NewTrendingRepo creates a trending repository over a DB or transaction.
func NewTrendingRepo(db sqlx.ExtContext, timeout time.Duration) persistence.TrendingRepo {
	return &trendingRepo{db: db, timeout: timeout}
}

// ReplaceAll swaps the whole leaderboard inside the caller's transaction, so
// readers never observe a partially updated table.
func (r *trendingRepo) ReplaceAll(ctx context.Context, entries []persistence.TrendingProduct) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM trending_products`); err != nil {
		return fmt.Errorf("failed to clear trending products: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(entries))
	args := make([]interface{}, 0, len(entries)*3)
	for i, e := range entries {
		base := i * 3
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d)", base+1, base+2, base+3))
		args = append(args, e.ProductID, e.TrendScore, e.Rank)
	}

	query := `
		INSERT INTO trending_products (product_id, trend_score, rank)
		VALUES ` + strings.Join(placeholders, ", ")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert trending products: %w", err)
	}
	return nil
}
