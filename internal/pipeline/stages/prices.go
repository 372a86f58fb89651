package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/peakgear/pricewatch/internal/model"
	"github.com/peakgear/pricewatch/internal/persistence"
	"github.com/peakgear/pricewatch/internal/pipeline"
)

// SavePriceHistory bulk-inserts one price observation per valid record.
// Records always continue downstream, with PriceSaved marking whether a row
// was actually written; an insert failure is a batch fault that forces the
// caller to roll back.
type SavePriceHistory struct {
	uow persistence.UnitOfWork
}

// NewSavePriceHistory builds the stage over one unit of work.
func NewSavePriceHistory(uow persistence.UnitOfWork) *SavePriceHistory {
	return &SavePriceHistory{uow: uow}
}

func (s *SavePriceHistory) Name() string { return "save_price_history" }

func (s *SavePriceHistory) Process(ctx context.Context, pc *pipeline.Context) error {
	records, ok := pc.Data.([]model.MatchedRecord)
	if !ok {
		return fmt.Errorf("unexpected payload %T", pc.Data)
	}

	out := make([]model.PricedRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, model.PricedRecord{MatchedRecord: rec})
	}
	pc.Data = out

	currencyIDs, err := s.currencyIndex(ctx)
	if err != nil {
		pc.Meta["saved_price_records"] = 0
		pc.Meta["price_save_errors"] = 1
		return fmt.Errorf("currency preload failed: %w", err)
	}

	rows := make([]persistence.PriceHistory, 0, len(records))
	saveable := make([]int, 0, len(records))
	failed := 0
	for i, rec := range records {
		if rec.Price <= 0 {
			pc.AddErrorf("mapping %d: non-positive price %.2f, not recorded", rec.MappingID, rec.Price)
			failed++
			continue
		}
		currencyID, ok := currencyIDs[strings.ToUpper(rec.Currency)]
		if !ok {
			pc.AddErrorf("mapping %d: currency %q not found", rec.MappingID, rec.Currency)
			failed++
			continue
		}

		row := persistence.PriceHistory{
			MappingID:  rec.MappingID,
			Price:      rec.Price,
			CurrencyID: currencyID,
			InStock:    rec.Source.InStock,
		}
		if rec.OriginalPrice > 0 {
			op := rec.OriginalPrice
			row.OriginalPrice = &op
		}
		qty := rec.Source.StockQuantity
		row.StockQuantity = &qty

		rows = append(rows, row)
		saveable = append(saveable, i)
	}

	if len(rows) > 0 {
		if err := s.uow.PriceHistories().CreateBatch(ctx, rows); err != nil {
			pc.Meta["saved_price_records"] = 0
			pc.Meta["price_save_errors"] = failed + 1
			return fmt.Errorf("price history insert failed: %w", err)
		}
		for _, i := range saveable {
			out[i].PriceSaved = true
		}
	}

	pc.Meta["saved_price_records"] = len(rows)
	pc.Meta["price_save_errors"] = failed
	return nil
}

// currencyIndex preloads currency ids once per batch, keyed by upper-cased
// ISO code.
func (s *SavePriceHistory) currencyIndex(ctx context.Context) (map[string]int64, error) {
	currencies, err := s.uow.Currencies().All(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int64, len(currencies))
	for _, c := range currencies {
		index[strings.ToUpper(c.Code)] = c.ID
	}
	return index, nil
}
