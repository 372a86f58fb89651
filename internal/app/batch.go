package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/peakgear/pricewatch/internal/collector"
	"github.com/peakgear/pricewatch/internal/model"
	"github.com/peakgear/pricewatch/internal/pipeline"
	"github.com/peakgear/pricewatch/internal/pipeline/stages"
)

// Batch triggers recorded on results and metrics.
const (
	TriggerAPI       = "api"
	TriggerScheduler = "scheduler"
	TriggerCLI       = "cli"
)

// BatchOptions control one collection batch.
type BatchOptions struct {
	// Providers restricts collection to the named slugs; empty collects all.
	Providers []string
	// UseCache serves provider records from cache when fresh. False drops
	// the cached entries first, forcing live fetches.
	UseCache bool
	// SkipAnalysis stops after collection, leaving the database untouched.
	SkipAnalysis bool
	// TriggeredBy labels the batch origin (api, scheduler, cli).
	TriggeredBy string
}

// BatchResult is the outcome of one collection batch. Errors carries both
// per-record diagnostics and batch-level faults; Committed tells them apart:
// a committed batch only had record-level problems.
type BatchResult struct {
	BatchID     uuid.UUID                   `json:"batch_id"`
	TriggeredBy string                      `json:"triggered_by"`
	StartedAt   time.Time                   `json:"started_at"`
	DurationMS  int64                       `json:"duration_ms"`
	Report      *collector.CollectionReport `json:"collection"`
	RecordCount int                         `json:"record_count"`
	Analyzed    bool                        `json:"analyzed"`
	Committed   bool                        `json:"committed"`
	Errors      []string                    `json:"errors,omitempty"`
	Meta        map[string]any              `json:"meta,omitempty"`

	duration time.Duration
}

// Duration returns the wall-clock time the batch took.
func (r *BatchResult) Duration() time.Duration {
	return r.duration
}

// Failed reports whether the batch produced nothing durable: no provider
// succeeded, or analysis was attempted and rolled back.
func (r *BatchResult) Failed() bool {
	if r.Report != nil && r.Report.Stats.SuccessfulProviders == 0 {
		return true
	}
	return r.Analyzed && !r.Committed
}

// RunBatch runs one end-to-end batch: collect from the providers, stamp the
// records with their database provider ids, and run the analysis pipeline
// inside a single transaction. The transaction commits only when no stage
// recorded a batch-level fault; record-level problems are reported but never
// block the rest of the batch.
func (s *Services) RunBatch(ctx context.Context, opts BatchOptions) *BatchResult {
	start := time.Now()
	res := &BatchResult{
		BatchID:     uuid.New(),
		TriggeredBy: trigger(opts.TriggeredBy),
		StartedAt:   start.UTC(),
		Meta:        make(map[string]any),
	}

	logger := log.With().Str("batch_id", res.BatchID.String()).Str("trigger", res.TriggeredBy).Logger()
	logger.Info().
		Strs("providers", opts.Providers).
		Bool("use_cache", opts.UseCache).
		Bool("skip_analysis", opts.SkipAnalysis).
		Msg("batch started")

	if !opts.UseCache {
		if len(opts.Providers) == 0 {
			s.Collector.InvalidateAll()
		} else {
			for _, slug := range opts.Providers {
				s.Collector.InvalidateCache(slug)
			}
		}
	}

	report := s.Collector.CollectAll(ctx, opts.Providers...)
	res.Report = report
	s.Metrics.ObserveCollection(report)

	records := report.AllRecords()
	res.RecordCount = len(records)

	switch {
	case opts.SkipAnalysis:
		logger.Info().Int("records", len(records)).Msg("analysis skipped by request")
	case !s.DB.IsEnabled():
		logger.Debug().Msg("persistence disabled, collection only")
	case len(records) == 0:
		logger.Warn().Msg("no records collected, nothing to analyze")
	default:
		s.analyze(ctx, res, records, logger)
	}

	s.RefreshGauges()
	res.duration = time.Since(start)
	res.DurationMS = res.duration.Milliseconds()
	s.Metrics.ObserveBatch(res.TriggeredBy, res.outcome(), res.duration.Seconds())

	logger.Info().
		Int("records", res.RecordCount).
		Bool("committed", res.Committed).
		Int("errors", len(res.Errors)).
		Int64("duration_ms", res.DurationMS).
		Msg("batch finished")

	return res
}

// analyze runs the staged pipeline over the records inside one unit of work.
func (s *Services) analyze(ctx context.Context, res *BatchResult, records []model.UnifiedRecord, logger zerolog.Logger) {
	if err := s.stampProviderIDs(ctx, records); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("provider lookup: %v", err))
		logger.Error().Err(err).Msg("provider stamping failed, analysis aborted")
		return
	}

	uow, err := s.DB.Begin(ctx)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("begin transaction: %v", err))
		logger.Error().Err(err).Msg("could not open analysis transaction")
		return
	}
	defer uow.Rollback()

	pc := pipeline.NewContext(records)
	pc.User = res.TriggeredBy
	runner := pipeline.NewRunner(stages.Analysis(uow, s.Rates, s.stageConfig())...)
	runner.Run(ctx, pc)

	res.Analyzed = true
	res.Errors = append(res.Errors, pc.Errors...)
	for key, value := range pc.Meta {
		res.Meta[key] = value
	}
	s.Metrics.ObservePipeline(pc, len(records))

	if pc.HasHardErrors() {
		logger.Error().Strs("faults", pc.HardErrors()).Msg("batch faulted, rolling back")
		return
	}
	if err := uow.Commit(); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("commit: %v", err))
		logger.Error().Err(err).Msg("commit failed")
		return
	}
	res.Committed = true
}

// stampProviderIDs resolves each record's provider slug to its database id.
// Records from providers missing in the database keep a zero id and are
// dropped later by the mapping stage with a diagnostic.
func (s *Services) stampProviderIDs(ctx context.Context, records []model.UnifiedRecord) error {
	index, err := s.DB.Providers().SlugIndex(ctx)
	if err != nil {
		return err
	}

	unknown := make(map[string]bool)
	for i := range records {
		if id, ok := index[records[i].ProviderSlug]; ok {
			records[i].ProviderID = id
		} else {
			unknown[records[i].ProviderSlug] = true
		}
	}
	for slug := range unknown {
		log.Warn().Str("provider", slug).Msg("collected records from unseeded provider")
	}
	return nil
}

func (s *Services) stageConfig() stages.Config {
	return stages.Config{
		HistoryLimit:       s.Config.Pipeline.HistoryLimit,
		ArbitrageThreshold: s.Config.Pipeline.ArbitrageThreshold,
		TopTrending:        s.Config.Pipeline.TopTrending,
		EnableProfitMargin: s.Config.Pipeline.EnableProfitMargin,
	}
}

func (r *BatchResult) outcome() string {
	switch {
	case r.Committed:
		return OutcomeCommitted
	case r.Analyzed:
		return OutcomeRolledBack
	default:
		return OutcomeCollectOnly
	}
}

func trigger(t string) string {
	if t == "" {
		return TriggerCLI
	}
	return t
}
