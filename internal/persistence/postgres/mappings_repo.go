package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/peakgear/pricewatch/internal/persistence"
)

const mappingColumns = `id, product_id, provider_id, external_product_code, estimated_profit_margin, is_arbitrage_opportunity, product_url`

// mappingsRepo implements MappingRepo for PostgreSQL.
type mappingsRepo struct {
	db      sqlx.ExtContext
	timeout time.Duration
}

// NewMappingsRepo creates a mapping repository over a DB or transaction.
func NewMappingsRepo(db sqlx.ExtContext, timeout time.Duration) persistence.MappingRepo {
	return &mappingsRepo{db: db, timeout: timeout}
}

func (r *mappingsRepo) ByProviderAndCode(ctx context.Context, providerID int64, externalCode string) (*persistence.ProductMapping, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ` + mappingColumns + `
		FROM product_mappings
		WHERE provider_id = $1 AND external_product_code = $2`

	var m persistence.ProductMapping
	if err := r.db.QueryRowxContext(ctx, query, providerID, externalCode).StructScan(&m); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}
	return &m, nil
}

func (r *mappingsRepo) FindOrCreate(ctx context.Context, providerID int64, externalCode string, productURL *string) (*persistence.ProductMapping, error) {
	existing, err := r.ByProviderAndCode(ctx, providerID, externalCode)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	insertCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO product_mappings (provider_id, external_product_code, product_url)
		VALUES ($1, $2, $3)
		RETURNING id`

	m := persistence.ProductMapping{
		ProviderID:          providerID,
		ExternalProductCode: externalCode,
		ProductURL:          productURL,
	}
	err = r.db.QueryRowxContext(insertCtx, query, providerID, externalCode, productURL).Scan(&m.ID)
	if err != nil {
		// A concurrent insert won the unique constraint; fetch the winner.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			winner, ferr := r.ByProviderAndCode(ctx, providerID, externalCode)
			if ferr != nil {
				return nil, ferr
			}
			if winner != nil {
				return winner, nil
			}
		}
		return nil, fmt.Errorf("failed to insert mapping: %w", err)
	}
	return &m, nil
}

func (r *mappingsRepo) SetProduct(ctx context.Context, mappingID, productID int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE product_mappings
		SET product_id = $1
		WHERE id = $2`

	if _, err := r.db.ExecContext(ctx, query, productID, mappingID); err != nil {
		return fmt.Errorf("failed to set mapping product: %w", err)
	}
	return nil
}

func (r *mappingsRepo) SetMargin(ctx context.Context, mappingID int64, marginPercent float64, arbitrage bool) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE product_mappings
		SET estimated_profit_margin = $1, is_arbitrage_opportunity = $2
		WHERE id = $3`

	if _, err := r.db.ExecContext(ctx, query, marginPercent, arbitrage, mappingID); err != nil {
		return fmt.Errorf("failed to set mapping margin: %w", err)
	}
	return nil
}
