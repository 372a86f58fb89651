package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/peakgear/pricewatch/internal/persistence"
)

// currenciesRepo implements CurrencyRepo for PostgreSQL.
type currenciesRepo struct {
	db      sqlx.ExtContext
	timeout time.Duration
}

// NewCurrenciesRepo creates a currency repository over a DB or transaction.
func NewCurrenciesRepo(db sqlx.ExtContext, timeout time.Duration) persistence.CurrencyRepo {
	return &currenciesRepo{db: db, timeout: timeout}
}

func (r *currenciesRepo) All(ctx context.Context) ([]persistence.Currency, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, code, symbol, name, exchange_rate
		FROM currencies
		ORDER BY id`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query currencies: %w", err)
	}
	defer rows.Close()

	var currencies []persistence.Currency
	for rows.Next() {
		var c persistence.Currency
		if err := rows.StructScan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan currency: %w", err)
		}
		currencies = append(currencies, c)
	}
	return currencies, rows.Err()
}

func (r *currenciesRepo) ByCode(ctx context.Context, code string) (*persistence.Currency, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, code, symbol, name, exchange_rate
		FROM currencies
		WHERE code = $1`

	var c persistence.Currency
	if err := r.db.QueryRowxContext(ctx, query, code).StructScan(&c); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get currency by code: %w", err)
	}
	return &c, nil
}
