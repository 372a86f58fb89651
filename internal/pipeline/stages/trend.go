package stages

import (
	"context"
	"fmt"
	"math"

	"github.com/peakgear/pricewatch/internal/currency"
	"github.com/peakgear/pricewatch/internal/model"
	"github.com/peakgear/pricewatch/internal/persistence"
	"github.com/peakgear/pricewatch/internal/pipeline"
)

const (
	// defaultHistoryLimit is how many recent price points feed the trend
	// window.
	defaultHistoryLimit = 10

	// stableThreshold is the price change percentage inside which a trend
	// counts as stable.
	stableThreshold = 2.0

	// momentumBonus is added or subtracted when the newest three prices move
	// in one direction.
	momentumBonus = 10
)

// TrendAnalysis scores each record's price movement against its mapping's
// recent history. Records whose history cannot be loaded pass through
// unscored.
type TrendAnalysis struct {
	uow   persistence.UnitOfWork
	limit int
}

// NewTrendAnalysis builds the stage; limit <= 0 selects the default history
// window.
func NewTrendAnalysis(uow persistence.UnitOfWork, limit int) *TrendAnalysis {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &TrendAnalysis{uow: uow, limit: limit}
}

func (s *TrendAnalysis) Name() string { return "trend_analysis" }

func (s *TrendAnalysis) Process(ctx context.Context, pc *pipeline.Context) error {
	records, ok := pc.Data.([]model.PricedRecord)
	if !ok {
		return fmt.Errorf("unexpected payload %T", pc.Data)
	}

	out := make([]model.AnalyzedRecord, 0, len(records))
	analyzed, failed := 0, 0
	for _, rec := range records {
		history, err := s.uow.PriceHistories().ListByMapping(ctx, rec.MappingID, s.limit)
		if err != nil {
			pc.AddErrorf("mapping %d: trend analysis failed: %v", rec.MappingID, err)
			failed++
			out = append(out, model.AnalyzedRecord{PricedRecord: rec})
			continue
		}
		out = append(out, analyzeTrend(rec, history))
		analyzed++
	}

	pc.Data = out
	pc.Meta["trend_analyzed_count"] = analyzed
	pc.Meta["trend_analysis_errors"] = failed
	return nil
}

// analyzeTrend compares the current price against the history window. With
// fewer than two samples the record is marked stable without sufficient data.
func analyzeTrend(rec model.PricedRecord, history []persistence.PriceHistory) model.AnalyzedRecord {
	a := model.AnalyzedRecord{PricedRecord: rec, CurrentPrice: rec.Price}

	if len(history) < 2 {
		a.TrendDirection = model.TrendStable
		a.AvgPrice = rec.Price
		a.MinPrice = rec.Price
		a.MaxPrice = rec.Price
		return a
	}

	prices := make([]float64, len(history))
	sum := 0.0
	minPrice, maxPrice := history[0].Price, history[0].Price
	for i, h := range history {
		prices[i] = h.Price
		sum += h.Price
		if h.Price < minPrice {
			minPrice = h.Price
		}
		if h.Price > maxPrice {
			maxPrice = h.Price
		}
	}
	avg := sum / float64(len(prices))

	change := 0.0
	if avg > 0 {
		change = (rec.Price - avg) / avg * 100
	}

	switch {
	case math.Abs(change) <= stableThreshold:
		a.TrendDirection = model.TrendStable
	case change > 0:
		a.TrendDirection = model.TrendUp
	default:
		a.TrendDirection = model.TrendDown
	}

	base := clamp(change*5, -100, 100)
	a.TrendScore = int(clamp(base+float64(momentum(prices)), -100, 100))
	a.PriceChangePercent = currency.Round2(change)
	a.AvgPrice = currency.Round2(avg)
	a.MinPrice = currency.Round2(minPrice)
	a.MaxPrice = currency.Round2(maxPrice)
	a.HasSufficientData = true
	return a
}

// momentum inspects the newest three prices. The slice is newest first, so
// values growing toward the past mean the price has been falling.
func momentum(prices []float64) int {
	if len(prices) < 3 {
		return 0
	}
	recent := prices[:3]

	falling, rising := true, true
	for i := 0; i < len(recent)-1; i++ {
		if recent[i] > recent[i+1] {
			falling = false
		}
		if recent[i] < recent[i+1] {
			rising = false
		}
	}

	if falling {
		return -momentumBonus
	}
	if rising {
		return momentumBonus
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
