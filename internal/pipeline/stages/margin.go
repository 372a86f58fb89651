package stages

import (
	"context"
	"fmt"

	"github.com/peakgear/pricewatch/internal/currency"
	"github.com/peakgear/pricewatch/internal/model"
	"github.com/peakgear/pricewatch/internal/persistence"
	"github.com/peakgear/pricewatch/internal/pipeline"
)

const (
	// defaultArbitrageThreshold is the margin percentage at which a listing
	// counts as an arbitrage opportunity.
	defaultArbitrageThreshold = 10.0

	// marketHistoryLimit caps how many stored prices feed the market average
	// when the trend stage did not supply one.
	marketHistoryLimit = 50
)

// ProfitMargin compares each record's price against the market average for
// its mapping and flags arbitrage opportunities. The margin is also persisted
// onto the mapping row so it survives the batch.
type ProfitMargin struct {
	uow       persistence.UnitOfWork
	threshold float64
}

// NewProfitMargin builds the stage; threshold <= 0 selects the default.
func NewProfitMargin(uow persistence.UnitOfWork, threshold float64) *ProfitMargin {
	if threshold <= 0 {
		threshold = defaultArbitrageThreshold
	}
	return &ProfitMargin{uow: uow, threshold: threshold}
}

func (s *ProfitMargin) Name() string { return "profit_margin" }

func (s *ProfitMargin) Process(ctx context.Context, pc *pipeline.Context) error {
	records, ok := pc.Data.([]model.AnalyzedRecord)
	if !ok {
		return fmt.Errorf("unexpected payload %T", pc.Data)
	}

	out := make([]model.AnalyzedRecord, 0, len(records))
	arbitrage, failed := 0, 0
	for _, rec := range records {
		marketAvg, found, err := s.marketAverage(ctx, rec)
		if err != nil {
			pc.AddErrorf("mapping %d: profit margin failed: %v", rec.MappingID, err)
			failed++
			out = append(out, rec)
			continue
		}
		if !found {
			out = append(out, rec)
			continue
		}

		// Positive margin means this provider undercuts the market.
		margin := (marketAvg - rec.Price) / marketAvg * 100
		rounded := currency.Round2(margin)

		rec.HasMarketData = true
		rec.MarketAvgPrice = currency.Round2(marketAvg)
		rec.ProfitMarginPercent = &rounded
		rec.IsArbitrageOpportunity = margin >= s.threshold
		if rec.IsArbitrageOpportunity {
			arbitrage++
		}

		if err := s.uow.Mappings().SetMargin(ctx, rec.MappingID, rounded, rec.IsArbitrageOpportunity); err != nil {
			pc.AddErrorf("mapping %d: margin update failed: %v", rec.MappingID, err)
			failed++
		}

		out = append(out, rec)
	}

	pc.Data = out
	pc.Meta["arbitrage_opportunities"] = arbitrage
	pc.Meta["profit_margin_errors"] = failed
	return nil
}

// marketAverage prefers the average computed by the trend stage and falls
// back to a fresh query over stored prices. Records analyzed with a zero
// average have no usable market data.
func (s *ProfitMargin) marketAverage(ctx context.Context, rec model.AnalyzedRecord) (float64, bool, error) {
	if rec.TrendDirection != "" {
		if rec.AvgPrice > 0 {
			return rec.AvgPrice, true, nil
		}
		return 0, false, nil
	}

	mean, found, err := s.uow.PriceHistories().MeanPrice(ctx, rec.MappingID, marketHistoryLimit)
	if err != nil {
		return 0, false, err
	}
	if !found || mean <= 0 {
		return 0, false, nil
	}
	return mean, true, nil
}
