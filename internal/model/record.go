package model

import "time"

// UnifiedRecord is the provider-neutral shape every adapter emits and the
// analysis pipeline consumes. Price is kept as the raw text collected from
// the provider (it may carry currency symbols and locale separators);
// normalization parses and converts it.
type UnifiedRecord struct {
	ProviderSlug  string    `json:"provider_slug"`
	ProviderID    int64     `json:"provider_id,omitempty"`
	ExternalCode  string    `json:"external_code"`
	Name          string    `json:"name"`
	Brand         string    `json:"brand,omitempty"`
	Category      string    `json:"category,omitempty"`
	Subcategory   string    `json:"subcategory,omitempty"`
	Description   string    `json:"description,omitempty"`
	Price         string    `json:"price"`
	CurrencyCode  string    `json:"currency_code"`
	InStock       bool      `json:"in_stock"`
	StockQuantity int       `json:"stock_quantity"`
	ProductURL    string    `json:"product_url,omitempty"`
	ImageURL      string    `json:"image_url,omitempty"`
	Colors        []string  `json:"colors,omitempty"`
	Sizes         []string  `json:"sizes,omitempty"`
	CollectedAt   time.Time `json:"collected_at"`
}

// NormalizedRecord is a UnifiedRecord whose price has been parsed and
// converted into the base currency.
type NormalizedRecord struct {
	Source           UnifiedRecord `json:"source"`
	OriginalPrice    float64       `json:"original_price"`
	OriginalCurrency string        `json:"original_currency"`
	Price            float64       `json:"price"`
	Currency         string        `json:"currency"`
}

// MappedRecord carries the resolved provider mapping. ExistingProductID is
// zero when the mapping has not been matched to a canonical product before.
type MappedRecord struct {
	NormalizedRecord
	MappingID         int64 `json:"mapping_id"`
	ExistingProductID int64 `json:"existing_product_id,omitempty"`
}

// MatchedRecord carries the canonical product the mapping now points at.
type MatchedRecord struct {
	MappedRecord
	ProductID      int64 `json:"product_id"`
	ProductCreated bool  `json:"product_created"`
}

// PricedRecord marks whether a price history row was written for this record.
// PriceSaved stays false when validation skipped the row or the batch insert
// failed.
type PricedRecord struct {
	MatchedRecord
	PriceSaved bool `json:"price_saved"`
}

// Trend directions emitted by the trend analysis stage.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// AnalyzedRecord carries the trend metrics and, when the profit margin stage
// is enabled, the market comparison fields.
type AnalyzedRecord struct {
	PricedRecord
	TrendScore         int     `json:"trend_score"`
	TrendDirection     string  `json:"trend_direction"`
	PriceChangePercent float64 `json:"price_change_percent"`
	HasSufficientData  bool    `json:"has_sufficient_data"`
	CurrentPrice       float64 `json:"current_price"`
	AvgPrice           float64 `json:"avg_price,omitempty"`
	MinPrice           float64 `json:"min_price,omitempty"`
	MaxPrice           float64 `json:"max_price,omitempty"`

	HasMarketData          bool     `json:"has_market_data,omitempty"`
	MarketAvgPrice         float64  `json:"market_avg_price,omitempty"`
	ProfitMarginPercent    *float64 `json:"profit_margin_percent,omitempty"`
	IsArbitrageOpportunity bool     `json:"is_arbitrage_opportunity,omitempty"`
}

// WeightedRecord is the pipeline's final shape: analysis metrics attenuated
// by the provider's reliability.
type WeightedRecord struct {
	AnalyzedRecord
	ReliabilityScore     float64  `json:"reliability_score"`
	DataQualityScore     int      `json:"data_quality_score"`
	ConfidenceLevel      float64  `json:"confidence_level"`
	WeightedTrendScore   float64  `json:"weighted_trend_score"`
	WeightedProfitMargin *float64 `json:"weighted_profit_margin,omitempty"`
}
