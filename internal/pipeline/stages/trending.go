package stages

import (
	"context"
	"fmt"
	"sort"

	"github.com/peakgear/pricewatch/internal/model"
	"github.com/peakgear/pricewatch/internal/persistence"
	"github.com/peakgear/pricewatch/internal/pipeline"
)

// defaultTopTrending is how many products the leaderboard keeps.
const defaultTopTrending = 5

// UpdateTrending replaces the trending leaderboard with the strongest movers
// of this batch. Both climbs and drops count, so ranking goes by absolute
// trend score. A failed replace is a batch fault.
type UpdateTrending struct {
	uow persistence.UnitOfWork
	top int
}

// NewUpdateTrending builds the stage; top <= 0 selects the default size.
func NewUpdateTrending(uow persistence.UnitOfWork, top int) *UpdateTrending {
	if top <= 0 {
		top = defaultTopTrending
	}
	return &UpdateTrending{uow: uow, top: top}
}

func (s *UpdateTrending) Name() string { return "update_trending" }

func (s *UpdateTrending) Process(ctx context.Context, pc *pipeline.Context) error {
	records, ok := pc.Data.([]model.WeightedRecord)
	if !ok {
		return fmt.Errorf("unexpected payload %T", pc.Data)
	}

	eligible := make([]model.WeightedRecord, 0, len(records))
	for _, rec := range records {
		if rec.ProductID > 0 && rec.HasSufficientData {
			eligible = append(eligible, rec)
		}
	}
	if len(eligible) == 0 {
		pc.Meta["trending_updated"] = 0
		return nil
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return absInt(eligible[i].TrendScore) > absInt(eligible[j].TrendScore)
	})

	// The leaderboard is unique per product; the same canonical product seen
	// through several providers keeps only its strongest score.
	entries := make([]persistence.TrendingProduct, 0, s.top)
	seen := make(map[int64]bool, s.top)
	for _, rec := range eligible {
		if seen[rec.ProductID] {
			continue
		}
		seen[rec.ProductID] = true
		entries = append(entries, persistence.TrendingProduct{
			ProductID:  rec.ProductID,
			TrendScore: rec.TrendScore,
			Rank:       len(entries) + 1,
		})
		if len(entries) == s.top {
			break
		}
	}

	if err := s.uow.Trending().ReplaceAll(ctx, entries); err != nil {
		pc.Meta["trending_updated"] = 0
		return fmt.Errorf("trending refresh failed: %w", err)
	}

	pc.Meta["trending_updated"] = len(entries)
	return nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
