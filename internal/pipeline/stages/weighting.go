package stages

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/peakgear/pricewatch/internal/currency"
	"github.com/peakgear/pricewatch/internal/model"
	"github.com/peakgear/pricewatch/internal/persistence"
	"github.com/peakgear/pricewatch/internal/pipeline"
)

const (
	// defaultReliability applies to providers with no stored score.
	defaultReliability = 1.0

	// defaultDataQuality applies to providers with no stored quality score.
	defaultDataQuality = 50
)

// ReliabilityWeighting attenuates trend and margin metrics by the source
// provider's reliability, so untrusted providers move derived numbers less.
type ReliabilityWeighting struct {
	uow persistence.UnitOfWork
}

// NewReliabilityWeighting builds the stage over one unit of work.
func NewReliabilityWeighting(uow persistence.UnitOfWork) *ReliabilityWeighting {
	return &ReliabilityWeighting{uow: uow}
}

func (s *ReliabilityWeighting) Name() string { return "reliability_weighting" }

func (s *ReliabilityWeighting) Process(ctx context.Context, pc *pipeline.Context) error {
	records, ok := pc.Data.([]model.AnalyzedRecord)
	if !ok {
		return fmt.Errorf("unexpected payload %T", pc.Data)
	}

	providers := s.providerIndex(ctx)

	out := make([]model.WeightedRecord, 0, len(records))
	weighted := 0
	for _, rec := range records {
		if rec.Source.ProviderID <= 0 {
			out = append(out, model.WeightedRecord{AnalyzedRecord: rec})
			continue
		}

		reliability := defaultReliability
		quality := defaultDataQuality
		if p, ok := providers[rec.Source.ProviderID]; ok {
			if p.ReliabilityScore > 0 {
				reliability = p.ReliabilityScore
			}
			if p.DataQualityScore != nil && *p.DataQualityScore > 0 {
				quality = *p.DataQualityScore
			}
		}

		w := model.WeightedRecord{
			AnalyzedRecord:     rec,
			ReliabilityScore:   currency.Round2(reliability),
			DataQualityScore:   quality,
			ConfidenceLevel:    currency.Round2((reliability + float64(quality)/100) / 2),
			WeightedTrendScore: currency.Round2(float64(rec.TrendScore) * reliability),
		}
		if rec.ProfitMarginPercent != nil {
			wm := currency.Round2(*rec.ProfitMarginPercent * reliability)
			w.WeightedProfitMargin = &wm
		}

		out = append(out, w)
		weighted++
	}

	pc.Data = out
	pc.Meta["reliability_weighted_count"] = weighted
	pc.Meta["reliability_weighting_errors"] = 0
	return nil
}

// providerIndex preloads provider scores once per batch. A failed preload
// falls back to default weights rather than failing the batch.
func (s *ReliabilityWeighting) providerIndex(ctx context.Context) map[int64]persistence.Provider {
	providers, err := s.uow.Providers().All(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("provider preload failed, weighting with defaults")
		return nil
	}
	index := make(map[int64]persistence.Provider, len(providers))
	for _, p := range providers {
		index[p.ID] = p
	}
	return index
}
