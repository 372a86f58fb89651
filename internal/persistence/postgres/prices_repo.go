package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/peakgear/pricewatch/internal/persistence"
)

// pricesRepo implements PriceHistoryRepo for PostgreSQL.
type pricesRepo struct {
	db      sqlx.ExtContext
	timeout time.Duration
}

// NewPricesRepo creates a price history repository over a DB or transaction.
func NewPricesRepo(db sqlx.ExtContext, timeout time.Duration) persistence.PriceHistoryRepo {
	return &pricesRepo{db: db, timeout: timeout}
}

func (r *pricesRepo) ListByMapping(ctx context.Context, mappingID int64, limit int) ([]persistence.PriceHistory, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, mapping_id, variant_id, price, original_price, discount_rate, currency_id, in_stock, stock_quantity, created_at
		FROM price_histories
		WHERE mapping_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.QueryxContext(ctx, query, mappingID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var records []persistence.PriceHistory
	for rows.Next() {
		var ph persistence.PriceHistory
		if err := rows.StructScan(&ph); err != nil {
			return nil, fmt.Errorf("failed to scan price history: %w", err)
		}
		records = append(records, ph)
	}
	return records, rows.Err()
}

func (r *pricesRepo) CreateBatch(ctx context.Context, records []persistence.PriceHistory) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	placeholders := make([]string, 0, len(records))
	args := make([]interface{}, 0, len(records)*8)
	for i, ph := range records {
		base := i * 8
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		args = append(args,
			ph.MappingID, ph.VariantID, ph.Price, ph.OriginalPrice,
			ph.DiscountRate, ph.CurrencyID, ph.InStock, ph.StockQuantity)
	}

	query := `
		INSERT INTO price_histories (mapping_id, variant_id, price, original_price, discount_rate, currency_id, in_stock, stock_quantity)
		VALUES ` + strings.Join(placeholders, ", ")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert price history batch: %w", err)
	}
	return nil
}

func (r *pricesRepo) MeanPrice(ctx context.Context, mappingID int64, limit int) (float64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT COALESCE(AVG(price), 0), COUNT(*)
		FROM (
			SELECT price
			FROM price_histories
			WHERE mapping_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent`

	var (
		mean  float64
		count int64
	)
	if err := r.db.QueryRowxContext(ctx, query, mappingID, limit).Scan(&mean, &count); err != nil {
		return 0, false, fmt.Errorf("failed to compute mean price: %w", err)
	}
	return mean, count > 0, nil
}
