// Package postgres implements the persistence contracts over PostgreSQL
// with sqlx. Every repository accepts sqlx.ExtContext so the same code runs
// against the pool or inside a unit-of-work transaction.
package postgres

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/peakgear/pricewatch/internal/persistence"
)

// DefaultQueryTimeout bounds individual repository calls.
const DefaultQueryTimeout = 10 * time.Second

// unitOfWork binds all repositories to one transaction.
type unitOfWork struct {
	tx      *sqlx.Tx
	timeout time.Duration
}

// NewUnitOfWork wraps an open transaction. The caller owns beginning the
// transaction; Commit or Rollback ends it.
func NewUnitOfWork(tx *sqlx.Tx, timeout time.Duration) persistence.UnitOfWork {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &unitOfWork{tx: tx, timeout: timeout}
}

func (u *unitOfWork) Providers() persistence.ProviderRepo {
	return NewProvidersRepo(u.tx, u.timeout)
}

func (u *unitOfWork) Currencies() persistence.CurrencyRepo {
	return NewCurrenciesRepo(u.tx, u.timeout)
}

func (u *unitOfWork) Products() persistence.ProductRepo {
	return NewProductsRepo(u.tx, u.timeout)
}

func (u *unitOfWork) Variants() persistence.VariantRepo {
	return NewVariantsRepo(u.tx, u.timeout)
}

func (u *unitOfWork) Mappings() persistence.MappingRepo {
	return NewMappingsRepo(u.tx, u.timeout)
}

func (u *unitOfWork) PriceHistories() persistence.PriceHistoryRepo {
	return NewPricesRepo(u.tx, u.timeout)
}

func (u *unitOfWork) Trending() persistence.TrendingRepo {
	return NewTrendingRepo(u.tx, u.timeout)
}

func (u *unitOfWork) Commit() error {
	return u.tx.Commit()
}

// Rollback aborts the transaction. Safe to defer after Commit: a finished
// transaction reports success.
func (u *unitOfWork) Rollback() error {
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
