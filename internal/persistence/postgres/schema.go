package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/peakgear/pricewatch/internal/persistence"
)

// schema is the full DDL, by design idempotent so startup can apply it
// unconditionally.
const schema = `
CREATE TABLE IF NOT EXISTS providers (
	id                  BIGSERIAL PRIMARY KEY,
	name                VARCHAR(255) NOT NULL,
	slug                VARCHAR(255) UNIQUE,
	description         TEXT,
	base_url            VARCHAR(255),
	logo_url            VARCHAR(255),
	rating              NUMERIC(2,1) NOT NULL DEFAULT 0,
	review_count        INTEGER NOT NULL DEFAULT 0,
	is_verified         BOOLEAN NOT NULL DEFAULT false,
	is_active           BOOLEAN NOT NULL DEFAULT true,
	country             VARCHAR(100) NOT NULL DEFAULT 'Turkey',
	reliability_score   NUMERIC(3,2) NOT NULL DEFAULT 1.00,
	data_quality_score  INTEGER,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at          TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS currencies (
	id             BIGSERIAL PRIMARY KEY,
	code           CHAR(3) UNIQUE NOT NULL,
	symbol         VARCHAR(5),
	name           VARCHAR(50),
	exchange_rate  NUMERIC(10,4) NOT NULL DEFAULT 1.0000
);

CREATE TABLE IF NOT EXISTS products (
	id           BIGSERIAL PRIMARY KEY,
	category_id  BIGINT,
	name         VARCHAR(255) NOT NULL,
	slug         VARCHAR(255) UNIQUE,
	brand        VARCHAR(100),
	gender       VARCHAR(20),
	description  TEXT,
	image_url    TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_products_name ON products (name);

CREATE TABLE IF NOT EXISTS product_variants (
	id          BIGSERIAL PRIMARY KEY,
	product_id  BIGINT NOT NULL REFERENCES products(id),
	sku         VARCHAR(255) UNIQUE,
	attributes  JSON NOT NULL,
	image_url   TEXT
);

CREATE TABLE IF NOT EXISTS product_mappings (
	id                        BIGSERIAL PRIMARY KEY,
	product_id                BIGINT REFERENCES products(id),
	provider_id               BIGINT REFERENCES providers(id),
	external_product_code     VARCHAR(255) NOT NULL,
	estimated_profit_margin   NUMERIC(5,2),
	is_arbitrage_opportunity  BOOLEAN NOT NULL DEFAULT false,
	product_url               TEXT,
	CONSTRAINT uix_provider_external_code UNIQUE (provider_id, external_product_code)
);

CREATE TABLE IF NOT EXISTS price_histories (
	id              BIGSERIAL PRIMARY KEY,
	mapping_id      BIGINT REFERENCES product_mappings(id),
	variant_id      BIGINT REFERENCES product_variants(id),
	price           NUMERIC(10,2) NOT NULL,
	original_price  NUMERIC(10,2),
	discount_rate   INTEGER,
	currency_id     BIGINT NOT NULL REFERENCES currencies(id),
	in_stock        BOOLEAN NOT NULL DEFAULT true,
	stock_quantity  INTEGER,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_price_histories_mapping_created
	ON price_histories (mapping_id, created_at DESC);

CREATE TABLE IF NOT EXISTS trending_products (
	id           BIGSERIAL PRIMARY KEY,
	product_id   BIGINT NOT NULL UNIQUE REFERENCES products(id),
	trend_score  INTEGER NOT NULL DEFAULT 0,
	rank         INTEGER NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	log.Info().Msg("database schema applied")
	return nil
}

// SeedCurrencies upserts the supported currency set.
func SeedCurrencies(ctx context.Context, db *sqlx.DB, currencies []persistence.Currency) error {
	query := `
		INSERT INTO currencies (code, symbol, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO NOTHING`

	for _, c := range currencies {
		if _, err := db.ExecContext(ctx, query, c.Code, c.Symbol, c.Name); err != nil {
			return fmt.Errorf("failed to seed currency %s: %w", c.Code, err)
		}
	}
	log.Info().Int("currencies", len(currencies)).Msg("currencies seeded")
	return nil
}

// SeedProviders upserts providers by slug. Reliability and data quality come
// from the configured weight profile, so re-seeding refreshes them.
func SeedProviders(ctx context.Context, db *sqlx.DB, providers []persistence.Provider) error {
	query := `
		INSERT INTO providers (name, slug, base_url, country, reliability_score, data_quality_score)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name,
		    base_url = EXCLUDED.base_url,
		    reliability_score = EXCLUDED.reliability_score,
		    data_quality_score = EXCLUDED.data_quality_score,
		    updated_at = NOW()`

	for _, p := range providers {
		country := p.Country
		if country == "" {
			country = "Turkey"
		}
		if _, err := db.ExecContext(ctx, query,
			p.Name, p.Slug, p.BaseURL, country, p.ReliabilityScore, p.DataQualityScore); err != nil {
			return fmt.Errorf("failed to seed provider %s: %w", p.Slug, err)
		}
	}
	log.Info().Int("providers", len(providers)).Msg("providers seeded")
	return nil
}
