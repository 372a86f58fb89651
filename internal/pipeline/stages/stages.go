// Package stages implements the analysis stages run over each collected
// batch: currency normalization, mapping resolution, product matching, price
// persistence, trend scoring, profit margins, reliability weighting and the
// trending leaderboard. Stages are bound to one unit of work, so a batch
// commits or rolls back as a whole.
package stages

import (
	"github.com/peakgear/pricewatch/internal/persistence"
	"github.com/peakgear/pricewatch/internal/pipeline"
)

// Config carries the tunables of the stage chain. Zero values select the
// documented defaults, except EnableProfitMargin which is an explicit switch.
type Config struct {
	HistoryLimit       int     `yaml:"history_limit"`
	ArbitrageThreshold float64 `yaml:"arbitrage_threshold"`
	TopTrending        int     `yaml:"top_trending"`
	EnableProfitMargin bool    `yaml:"enable_profit_margin"`
}

// DefaultConfig returns the stage tunables used when no configuration is
// provided.
func DefaultConfig() Config {
	return Config{
		HistoryLimit:       defaultHistoryLimit,
		ArbitrageThreshold: defaultArbitrageThreshold,
		TopTrending:        defaultTopTrending,
		EnableProfitMargin: true,
	}
}

// Analysis assembles the full stage chain for one batch, bound to a single
// unit of work. The profit margin stage must sit between trend analysis and
// reliability weighting, so enabling it later never reorders the chain.
func Analysis(uow persistence.UnitOfWork, rates Converter, cfg Config) []pipeline.Stage {
	chain := []pipeline.Stage{
		NewNormalizeCurrency(rates),
		NewResolveMapping(uow),
		NewMatchProduct(uow),
		NewSavePriceHistory(uow),
		NewTrendAnalysis(uow, cfg.HistoryLimit),
	}
	if cfg.EnableProfitMargin {
		chain = append(chain, NewProfitMargin(uow, cfg.ArbitrageThreshold))
	}
	return append(chain,
		NewReliabilityWeighting(uow),
		NewUpdateTrending(uow, cfg.TopTrending),
	)
}
