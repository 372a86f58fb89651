package adapters

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/peakgear/pricewatch/internal/model"
)

// DagSpor adapts the Turkish feed. Field names follow the provider's API,
// prices arrive in TRY and commonly use comma decimals.
type DagSpor struct{}

func NewDagSpor() *DagSpor { return &DagSpor{} }

func (a *DagSpor) Slug() string     { return "dag-spor" }
func (a *DagSpor) Currency() string { return "TRY" }

type dagSporItem struct {
	UrunID      flexString `json:"urun_id"`
	UrunAdi     string     `json:"urun_adi"`
	Marka       string     `json:"marka"`
	Kategori    string     `json:"kategori"`
	AltKategori string     `json:"alt_kategori"`
	Renk        string     `json:"renk"`
	Fiyat       flexString `json:"fiyat"`
	StokAdedi   flexInt    `json:"stok_adedi"`
	StoktaVar   bool       `json:"stokta_var"`
}

func (a *DagSpor) Adapt(body []byte) ([]model.UnifiedRecord, error) {
	var payload struct {
		Urunler []json.RawMessage `json:"urunler"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("dag-spor payload: %w", err)
	}

	now := time.Now().UTC()
	records := make([]model.UnifiedRecord, 0, len(payload.Urunler))
	for i, raw := range payload.Urunler {
		var item dagSporItem
		if err := json.Unmarshal(raw, &item); err != nil {
			log.Warn().Err(err).Str("provider", a.Slug()).Int("index", i).Msg("skipping malformed item")
			continue
		}
		if item.UrunID == "" || item.UrunAdi == "" {
			log.Warn().Str("provider", a.Slug()).Int("index", i).Msg("skipping item without id or name")
			continue
		}

		rec := model.UnifiedRecord{
			ProviderSlug:  a.Slug(),
			ExternalCode:  string(item.UrunID),
			Name:          item.UrunAdi,
			Brand:         item.Marka,
			Category:      item.Kategori,
			Subcategory:   item.AltKategori,
			Price:         string(item.Fiyat),
			CurrencyCode:  a.Currency(),
			InStock:       item.StoktaVar,
			StockQuantity: int(item.StokAdedi),
			CollectedAt:   now,
		}
		if item.Renk != "" {
			rec.Colors = []string{item.Renk}
		}
		records = append(records, rec)
	}
	return records, nil
}
