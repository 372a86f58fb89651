package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/peakgear/pricewatch/internal/currency"
	"github.com/peakgear/pricewatch/internal/model"
	"github.com/peakgear/pricewatch/internal/pipeline"
)

// Converter supplies the rate table records are normalized with, quoted in
// the base currency. *currency.Service satisfies it.
type Converter interface {
	Rates(ctx context.Context) map[string]float64
}

// NormalizeCurrency parses raw provider price text and converts every record
// to the base currency. Records whose price cannot be parsed or whose
// currency has no rate are reported and dropped from the stream.
type NormalizeCurrency struct {
	rates Converter
}

// NewNormalizeCurrency builds the stage around a rate source.
func NewNormalizeCurrency(rates Converter) *NormalizeCurrency {
	return &NormalizeCurrency{rates: rates}
}

func (s *NormalizeCurrency) Name() string { return "normalize_currency" }

func (s *NormalizeCurrency) Process(ctx context.Context, pc *pipeline.Context) error {
	records, ok := pc.Data.([]model.UnifiedRecord)
	if !ok {
		return fmt.Errorf("unexpected payload %T", pc.Data)
	}

	// One rate fetch covers the whole batch.
	rates := s.rates.Rates(ctx)

	out := make([]model.NormalizedRecord, 0, len(records))
	failed := 0
	for _, rec := range records {
		price, err := currency.ParsePrice(rec.Price)
		if err != nil {
			pc.AddErrorf("ID %s: price parse failed: %v", rec.ExternalCode, err)
			failed++
			continue
		}

		code := strings.ToUpper(strings.TrimSpace(rec.CurrencyCode))
		if code == "" {
			code = currency.BaseCurrency
		}
		rate, ok := rates[code]
		if !ok {
			pc.AddErrorf("ID %s: no exchange rate for currency %q", rec.ExternalCode, code)
			failed++
			continue
		}

		out = append(out, model.NormalizedRecord{
			Source:           rec,
			OriginalPrice:    price,
			OriginalCurrency: code,
			Price:            currency.Round2(price * rate),
			Currency:         currency.BaseCurrency,
		})
	}

	pc.Data = out
	pc.Meta["normalized_count"] = len(out)
	pc.Meta["normalization_errors"] = failed
	return nil
}
