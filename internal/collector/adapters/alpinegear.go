package adapters

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/peakgear/pricewatch/internal/model"
)

// AlpineGear adapts the German feed. Prices arrive in EUR.
type AlpineGear struct{}

func NewAlpineGear() *AlpineGear { return &AlpineGear{} }

func (a *AlpineGear) Slug() string     { return "alpine-gear" }
func (a *AlpineGear) Currency() string { return "EUR" }

type alpineGearItem struct {
	ArtikelID      flexString `json:"artikel_id"`
	Produktname    string     `json:"produktname"`
	Marke          string     `json:"marke"`
	Kategorie      string     `json:"kategorie"`
	Unterkategorie string     `json:"unterkategorie"`
	Farbe          string     `json:"farbe"`
	Preis          flexString `json:"preis"`
	Lagerbestand   flexInt    `json:"lagerbestand"`
	Verfuegbar     bool       `json:"verfuegbar"`
}

func (a *AlpineGear) Adapt(body []byte) ([]model.UnifiedRecord, error) {
	var payload struct {
		Produkte []json.RawMessage `json:"produkte"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("alpine-gear payload: %w", err)
	}

	now := time.Now().UTC()
	records := make([]model.UnifiedRecord, 0, len(payload.Produkte))
	for i, raw := range payload.Produkte {
		var item alpineGearItem
		if err := json.Unmarshal(raw, &item); err != nil {
			log.Warn().Err(err).Str("provider", a.Slug()).Int("index", i).Msg("skipping malformed item")
			continue
		}
		if item.ArtikelID == "" || item.Produktname == "" {
			log.Warn().Str("provider", a.Slug()).Int("index", i).Msg("skipping item without id or name")
			continue
		}

		rec := model.UnifiedRecord{
			ProviderSlug:  a.Slug(),
			ExternalCode:  string(item.ArtikelID),
			Name:          item.Produktname,
			Brand:         item.Marke,
			Category:      item.Kategorie,
			Subcategory:   item.Unterkategorie,
			Price:         string(item.Preis),
			CurrencyCode:  a.Currency(),
			InStock:       item.Verfuegbar,
			StockQuantity: int(item.Lagerbestand),
			CollectedAt:   now,
		}
		if item.Farbe != "" {
			rec.Colors = []string{item.Farbe}
		}
		records = append(records, rec)
	}
	return records, nil
}
