package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/peakgear/pricewatch/internal/persistence"
)

// productsRepo implements ProductRepo for PostgreSQL.
type productsRepo struct {
	db      sqlx.ExtContext
	timeout time.Duration
}

// NewProductsRepo creates a product repository over a DB or transaction.
func NewProductsRepo(db sqlx.ExtContext, timeout time.Duration) persistence.ProductRepo {
	return &productsRepo{db: db, timeout: timeout}
}

func (r *productsRepo) ByName(ctx context.Context, name string) (*persistence.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, category_id, name, slug, brand, description, image_url, created_at
		FROM products
		WHERE name = $1
		LIMIT 1`

	var p persistence.Product
	if err := r.db.QueryRowxContext(ctx, query, name).StructScan(&p); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product by name: %w", err)
	}
	return &p, nil
}

func (r *productsRepo) Create(ctx context.Context, p *persistence.Product) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO products (category_id, name, slug, brand, description, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		p.CategoryID, p.Name, p.Slug, p.Brand, p.Description, p.ImageURL).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate product slug %q: %w", p.Slug, err)
		}
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// variantsRepo implements VariantRepo for PostgreSQL.
type variantsRepo struct {
	db      sqlx.ExtContext
	timeout time.Duration
}

// NewVariantsRepo creates a variant repository over a DB or transaction.
func NewVariantsRepo(db sqlx.ExtContext, timeout time.Duration) persistence.VariantRepo {
	return &variantsRepo{db: db, timeout: timeout}
}

func (r *variantsRepo) CreateBatch(ctx context.Context, variants []persistence.ProductVariant) error {
	if len(variants) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	placeholders := make([]string, 0, len(variants))
	args := make([]interface{}, 0, len(variants)*4)
	for i, v := range variants {
		attrs, err := json.Marshal(v.Attributes)
		if err != nil {
			return fmt.Errorf("failed to marshal variant attributes: %w", err)
		}
		base := i * 4
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4))
		args = append(args, v.ProductID, v.SKU, attrs, v.ImageURL)
	}

	query := `
		INSERT INTO product_variants (product_id, sku, attributes, image_url)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (sku) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert variants: %w", err)
	}
	return nil
}
