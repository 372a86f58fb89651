// Package collector fans out to all configured retail providers in parallel,
// normalizes each bespoke payload through its adapter, and caches the results.
package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/peakgear/pricewatch/data/cache"
	"github.com/peakgear/pricewatch/internal/collector/adapters"
	"github.com/peakgear/pricewatch/internal/model"
	"github.com/peakgear/pricewatch/internal/net/circuit"
)

const defaultCacheTTL = 5 * time.Minute

// Fetcher performs one resilient HTTP fetch for a provider. Satisfied by
// net/client.Client.
type Fetcher interface {
	Get(ctx context.Context, provider, url string) ([]byte, error)
}

// Config carries the per-provider endpoints and cache policy.
type Config struct {
	// Endpoints maps provider slug to the full catalog URL.
	Endpoints map[string]string
	// CacheTTL bounds how long collected records are served from cache.
	// Zero means the default of five minutes.
	CacheTTL time.Duration
}

// Collector coordinates parallel collection across providers. Providers are
// independent: one failing, timing out, or being skipped never affects the
// others.
type Collector struct {
	registry  *adapters.Registry
	fetcher   Fetcher
	store     cache.Cache
	endpoints map[string]string
	ttl       time.Duration
}

// New builds a collector over the given adapter registry, resilient fetcher,
// and cache.
func New(registry *adapters.Registry, fetcher Fetcher, store cache.Cache, cfg Config) *Collector {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	endpoints := cfg.Endpoints
	if endpoints == nil {
		endpoints = map[string]string{}
	}
	return &Collector{
		registry:  registry,
		fetcher:   fetcher,
		store:     store,
		endpoints: endpoints,
		ttl:       ttl,
	}
}

func cacheKey(slug string) string {
	return "collector:products:" + slug
}

// CollectAll collects from the given providers, or from every registered
// provider when none are named. Each provider runs in its own goroutine; the
// report preserves the target order.
func (c *Collector) CollectAll(ctx context.Context, slugs ...string) *CollectionReport {
	start := time.Now()
	if len(slugs) == 0 {
		slugs = c.registry.Slugs()
	}

	log.Info().Int("providers", len(slugs)).Msg("starting collection")

	results := make([]ProviderResult, len(slugs))
	var wg sync.WaitGroup
	for i, slug := range slugs {
		wg.Add(1)
		go func(i int, slug string) {
			defer wg.Done()
			results[i] = c.collect(ctx, slug)
		}(i, slug)
	}
	wg.Wait()

	report := &CollectionReport{
		Results:     results,
		Stats:       buildStats(results, time.Since(start)),
		CollectedAt: start.UTC(),
	}

	log.Info().
		Int("successful", report.Stats.SuccessfulProviders).
		Int("failed", report.Stats.FailedProviders).
		Int("skipped", report.Stats.SkippedProviders).
		Int("products", report.Stats.TotalProducts).
		Int64("elapsed_ms", report.Stats.TotalTimeMS).
		Msg("collection finished")

	return report
}

// CollectSingle collects from one provider. Unknown slugs error with the
// list of available providers.
func (c *Collector) CollectSingle(ctx context.Context, slug string) (ProviderResult, error) {
	if _, err := c.registry.Get(slug); err != nil {
		return ProviderResult{}, err
	}
	return c.collect(ctx, slug), nil
}

// collect runs the cache-then-fetch path for one provider and never panics
// or propagates an error; every outcome lands in the result.
func (c *Collector) collect(ctx context.Context, slug string) ProviderResult {
	start := time.Now()
	res := ProviderResult{ProviderName: slug, FetchedAt: start.UTC()}

	if records, ok := c.fromCache(slug); ok {
		log.Debug().Str("provider", slug).Int("products", len(records)).Msg("cache hit")
		res.Success = true
		res.FromCache = true
		res.Products = records
		return res
	}

	adapter, err := c.registry.Get(slug)
	if err != nil {
		res.ErrorMessage = err.Error()
		res.ResponseTimeMS = time.Since(start).Milliseconds()
		return res
	}

	url, ok := c.endpoints[slug]
	if !ok || url == "" {
		res.ErrorMessage = fmt.Sprintf("no endpoint configured for provider %q", slug)
		res.ResponseTimeMS = time.Since(start).Milliseconds()
		return res
	}

	body, err := c.fetcher.Get(ctx, slug, url)
	if err != nil {
		res.ResponseTimeMS = time.Since(start).Milliseconds()
		res.ErrorMessage = err.Error()
		if errors.Is(err, circuit.ErrCircuitOpen) {
			log.Warn().Str("provider", slug).Msg("circuit open, provider skipped")
			res.Skipped = true
			return res
		}
		log.Error().Err(err).Str("provider", slug).Msg("provider fetch failed")
		return res
	}

	records, err := adapter.Adapt(body)
	if err != nil {
		res.ResponseTimeMS = time.Since(start).Milliseconds()
		res.ErrorMessage = err.Error()
		log.Error().Err(err).Str("provider", slug).Msg("payload adaptation failed")
		return res
	}

	res.Success = true
	res.Products = records
	res.ResponseTimeMS = time.Since(start).Milliseconds()
	c.toCache(slug, records)

	log.Debug().
		Str("provider", slug).
		Int("products", len(records)).
		Int64("elapsed_ms", res.ResponseTimeMS).
		Msg("provider collected")

	return res
}

func (c *Collector) fromCache(slug string) ([]model.UnifiedRecord, bool) {
	if c.store == nil {
		return nil, false
	}
	b, ok := c.store.Get(cacheKey(slug))
	if !ok {
		return nil, false
	}
	var records []model.UnifiedRecord
	if err := json.Unmarshal(b, &records); err != nil {
		log.Warn().Err(err).Str("provider", slug).Msg("dropping corrupt cache entry")
		c.store.Delete(cacheKey(slug))
		return nil, false
	}
	return records, true
}

func (c *Collector) toCache(slug string, records []model.UnifiedRecord) {
	if c.store == nil {
		return
	}
	b, err := json.Marshal(records)
	if err != nil {
		log.Warn().Err(err).Str("provider", slug).Msg("cache encode failed")
		return
	}
	c.store.Set(cacheKey(slug), b, c.ttl)
}

// InvalidateCache drops the cached records for one provider.
func (c *Collector) InvalidateCache(slug string) {
	if c.store == nil {
		return
	}
	c.store.Delete(cacheKey(slug))
	log.Debug().Str("provider", slug).Msg("provider cache invalidated")
}

// InvalidateAll drops the cached records for every registered provider.
func (c *Collector) InvalidateAll() {
	for _, slug := range c.registry.Slugs() {
		c.InvalidateCache(slug)
	}
}
