package adapters

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/peakgear/pricewatch/internal/model"
)

// SportDirect adapts the UK feed. Prices arrive in GBP under `price_gbp`.
type SportDirect struct{}

func NewSportDirect() *SportDirect { return &SportDirect{} }

func (a *SportDirect) Slug() string     { return "sport-direct" }
func (a *SportDirect) Currency() string { return "GBP" }

type sportDirectItem struct {
	ProductID     flexString `json:"product_id"`
	ProductName   string     `json:"product_name"`
	Brand         string     `json:"brand"`
	Category      string     `json:"category"`
	Subcategory   string     `json:"subcategory"`
	Colour        string     `json:"colour"`
	PriceGBP      flexString `json:"price_gbp"`
	StockQuantity flexInt    `json:"stock_quantity"`
	InStock       bool       `json:"in_stock"`
}

func (a *SportDirect) Adapt(body []byte) ([]model.UnifiedRecord, error) {
	var payload struct {
		Products []json.RawMessage `json:"products"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("sport-direct payload: %w", err)
	}

	now := time.Now().UTC()
	records := make([]model.UnifiedRecord, 0, len(payload.Products))
	for i, raw := range payload.Products {
		var item sportDirectItem
		if err := json.Unmarshal(raw, &item); err != nil {
			log.Warn().Err(err).Str("provider", a.Slug()).Int("index", i).Msg("skipping malformed item")
			continue
		}
		if item.ProductID == "" || item.ProductName == "" {
			log.Warn().Str("provider", a.Slug()).Int("index", i).Msg("skipping item without id or name")
			continue
		}

		rec := model.UnifiedRecord{
			ProviderSlug:  a.Slug(),
			ExternalCode:  string(item.ProductID),
			Name:          item.ProductName,
			Brand:         item.Brand,
			Category:      item.Category,
			Subcategory:   item.Subcategory,
			Price:         string(item.PriceGBP),
			CurrencyCode:  a.Currency(),
			InStock:       item.InStock,
			StockQuantity: int(item.StockQuantity),
			CollectedAt:   now,
		}
		if item.Colour != "" {
			rec.Colors = []string{item.Colour}
		}
		records = append(records, rec)
	}
	return records, nil
}
