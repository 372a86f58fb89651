package adapters

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/peakgear/pricewatch/internal/model"
)

// OutdoorPro adapts the US feed. The feed carries its own currency field,
// which is trusted when present and defaults to USD.
type OutdoorPro struct{}

func NewOutdoorPro() *OutdoorPro { return &OutdoorPro{} }

func (a *OutdoorPro) Slug() string     { return "outdoor-pro" }
func (a *OutdoorPro) Currency() string { return "USD" }

type outdoorProItem struct {
	ID        flexString `json:"id"`
	Name      string     `json:"name"`
	Brand     string     `json:"brand"`
	Category  string     `json:"category"`
	Price     flexString `json:"price"`
	Currency  string     `json:"currency"`
	Stock     flexInt    `json:"stock"`
	Available bool       `json:"available"`
}

func (a *OutdoorPro) Adapt(body []byte) ([]model.UnifiedRecord, error) {
	var payload struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("outdoor-pro payload: %w", err)
	}

	now := time.Now().UTC()
	records := make([]model.UnifiedRecord, 0, len(payload.Items))
	for i, raw := range payload.Items {
		var item outdoorProItem
		if err := json.Unmarshal(raw, &item); err != nil {
			log.Warn().Err(err).Str("provider", a.Slug()).Int("index", i).Msg("skipping malformed item")
			continue
		}
		if item.ID == "" || item.Name == "" {
			log.Warn().Str("provider", a.Slug()).Int("index", i).Msg("skipping item without id or name")
			continue
		}

		currency := strings.ToUpper(strings.TrimSpace(item.Currency))
		if currency == "" {
			currency = a.Currency()
		}

		records = append(records, model.UnifiedRecord{
			ProviderSlug:  a.Slug(),
			ExternalCode:  string(item.ID),
			Name:          item.Name,
			Brand:         item.Brand,
			Category:      item.Category,
			Price:         string(item.Price),
			CurrencyCode:  currency,
			InStock:       item.Available,
			StockQuantity: int(item.Stock),
			CollectedAt:   now,
		})
	}
	return records, nil
}
