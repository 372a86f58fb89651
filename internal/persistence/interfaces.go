// Package persistence defines the storage entities and repository contracts
// for the price collection pipeline. Implementations live in postgres/.
package persistence

import (
	"context"
	"time"
)

// Provider is a retail data source. ReliabilityScore (0.00-1.00) and
// DataQualityScore (0-100) feed the reliability weighting stage.
type Provider struct {
	ID               int64      `json:"id" db:"id"`
	Name             string     `json:"name" db:"name"`
	Slug             string     `json:"slug" db:"slug"`
	BaseURL          *string    `json:"base_url,omitempty" db:"base_url"`
	Rating           float64    `json:"rating" db:"rating"`
	ReviewCount      int        `json:"review_count" db:"review_count"`
	IsVerified       bool       `json:"is_verified" db:"is_verified"`
	IsActive         bool       `json:"is_active" db:"is_active"`
	Country          string     `json:"country" db:"country"`
	ReliabilityScore float64    `json:"reliability_score" db:"reliability_score"`
	DataQualityScore *int       `json:"data_quality_score,omitempty" db:"data_quality_score"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// Currency is a supported price currency with its last known rate to the
// base currency.
type Currency struct {
	ID           int64   `json:"id" db:"id"`
	Code         string  `json:"code" db:"code"`
	Symbol       *string `json:"symbol,omitempty" db:"symbol"`
	Name         *string `json:"name,omitempty" db:"name"`
	ExchangeRate float64 `json:"exchange_rate" db:"exchange_rate"`
}

// Product is the canonical catalog entry that provider listings map onto.
// Name is stored normalized (lowercase, single spaces).
type Product struct {
	ID          int64     `json:"id" db:"id"`
	CategoryID  *int64    `json:"category_id,omitempty" db:"category_id"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug"`
	Brand       *string   `json:"brand,omitempty" db:"brand"`
	Description *string   `json:"description,omitempty" db:"description"`
	ImageURL    *string   `json:"image_url,omitempty" db:"image_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ProductVariant is one sellable combination (color, size) of a product.
type ProductVariant struct {
	ID         int64             `json:"id" db:"id"`
	ProductID  int64             `json:"product_id" db:"product_id"`
	SKU        string            `json:"sku" db:"sku"`
	Attributes map[string]string `json:"attributes" db:"-"`
	ImageURL   *string           `json:"image_url,omitempty" db:"image_url"`
}

// ProductMapping links a provider's external product code to a canonical
// product. (provider_id, external_product_code) is unique; ProductID stays
// nil until matching succeeds.
type ProductMapping struct {
	ID                     int64    `json:"id" db:"id"`
	ProductID              *int64   `json:"product_id,omitempty" db:"product_id"`
	ProviderID             int64    `json:"provider_id" db:"provider_id"`
	ExternalProductCode    string   `json:"external_product_code" db:"external_product_code"`
	EstimatedProfitMargin  *float64 `json:"estimated_profit_margin,omitempty" db:"estimated_profit_margin"`
	IsArbitrageOpportunity bool     `json:"is_arbitrage_opportunity" db:"is_arbitrage_opportunity"`
	ProductURL             *string  `json:"product_url,omitempty" db:"product_url"`
}

// PriceHistory is one observed price point for a mapping, in base currency.
type PriceHistory struct {
	ID            int64     `json:"id" db:"id"`
	MappingID     int64     `json:"mapping_id" db:"mapping_id"`
	VariantID     *int64    `json:"variant_id,omitempty" db:"variant_id"`
	Price         float64   `json:"price" db:"price"`
	OriginalPrice *float64  `json:"original_price,omitempty" db:"original_price"`
	DiscountRate  *int      `json:"discount_rate,omitempty" db:"discount_rate"`
	CurrencyID    int64     `json:"currency_id" db:"currency_id"`
	InStock       bool      `json:"in_stock" db:"in_stock"`
	StockQuantity *int      `json:"stock_quantity,omitempty" db:"stock_quantity"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// TrendingProduct is one row of the top-N trending leaderboard, fully
// replaced by each pipeline run.
type TrendingProduct struct {
	ID         int64     `json:"id" db:"id"`
	ProductID  int64     `json:"product_id" db:"product_id"`
	TrendScore int       `json:"trend_score" db:"trend_score"`
	Rank       int       `json:"rank" db:"rank"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// ProviderRepo reads provider rows.
type ProviderRepo interface {
	// All returns every active provider.
	All(ctx context.Context) ([]Provider, error)

	// BySlug finds one provider by slug; (nil, nil) when absent.
	BySlug(ctx context.Context, slug string) (*Provider, error)

	// SlugIndex returns a slug -> id map over active providers for
	// stamping collected records.
	SlugIndex(ctx context.Context) (map[string]int64, error)
}

// CurrencyRepo reads currency rows.
type CurrencyRepo interface {
	// All returns every currency.
	All(ctx context.Context) ([]Currency, error)

	// ByCode finds one currency by ISO code; (nil, nil) when absent.
	ByCode(ctx context.Context, code string) (*Currency, error)
}

// ProductRepo reads and creates canonical products.
type ProductRepo interface {
	// ByName finds a product by its normalized name; (nil, nil) when absent.
	ByName(ctx context.Context, name string) (*Product, error)

	// Create inserts a product and fills in ID and CreatedAt.
	Create(ctx context.Context, p *Product) error
}

// VariantRepo creates product variants.
type VariantRepo interface {
	// CreateBatch inserts variants in one statement, ignoring SKU duplicates.
	CreateBatch(ctx context.Context, variants []ProductVariant) error
}

// MappingRepo manages provider-to-product mappings.
type MappingRepo interface {
	// ByProviderAndCode finds a mapping by its unique key; (nil, nil) when
	// absent.
	ByProviderAndCode(ctx context.Context, providerID int64, externalCode string) (*ProductMapping, error)

	// FindOrCreate returns the existing mapping or inserts a new one. A
	// unique-violation race falls back to re-fetching the winner.
	FindOrCreate(ctx context.Context, providerID int64, externalCode string, productURL *string) (*ProductMapping, error)

	// SetProduct attaches a canonical product to the mapping.
	SetProduct(ctx context.Context, mappingID, productID int64) error

	// SetMargin stores the estimated profit margin and arbitrage flag.
	SetMargin(ctx context.Context, mappingID int64, marginPercent float64, arbitrage bool) error
}

// PriceHistoryRepo stores and reads price observations.
type PriceHistoryRepo interface {
	// ListByMapping returns up to limit price points for a mapping, newest
	// first.
	ListByMapping(ctx context.Context, mappingID int64, limit int) ([]PriceHistory, error)

	// CreateBatch inserts the records in one statement.
	CreateBatch(ctx context.Context, records []PriceHistory) error

	// MeanPrice averages the newest limit prices for a mapping. The bool
	// reports whether any rows existed.
	MeanPrice(ctx context.Context, mappingID int64, limit int) (float64, bool, error)
}

// TrendingRepo maintains the trending leaderboard.
type TrendingRepo interface {
	// ReplaceAll clears the table and inserts the given entries.
	ReplaceAll(ctx context.Context, entries []TrendingProduct) error
}

// UnitOfWork scopes repository work to one database transaction. All repo
// accessors operate on the same transaction; Commit or Rollback ends it.
// Rollback after Commit is a no-op so callers can defer it.
type UnitOfWork interface {
	Providers() ProviderRepo
	Currencies() CurrencyRepo
	Products() ProductRepo
	Variants() VariantRepo
	Mappings() MappingRepo
	PriceHistories() PriceHistoryRepo
	Trending() TrendingRepo

	Commit() error
	Rollback() error
}
