// Package app assembles the collection and analysis services and runs price
// batches end to end: fan-out collection, provider stamping, the staged
// analysis pipeline inside one transaction, and the metrics that observe all
// of it.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/peakgear/pricewatch/data/cache"
	"github.com/peakgear/pricewatch/internal/collector"
	"github.com/peakgear/pricewatch/internal/collector/adapters"
	"github.com/peakgear/pricewatch/internal/config"
	"github.com/peakgear/pricewatch/internal/currency"
	"github.com/peakgear/pricewatch/internal/infrastructure/db"
	"github.com/peakgear/pricewatch/internal/net/budget"
	"github.com/peakgear/pricewatch/internal/net/circuit"
	"github.com/peakgear/pricewatch/internal/net/client"
	"github.com/peakgear/pricewatch/internal/net/ratelimit"
	"github.com/peakgear/pricewatch/internal/persistence"
)

// Services is the assembled application: every long-lived component wired
// from one configuration. Build it once at startup with New.
type Services struct {
	Config    *config.Config
	Weights   *config.WeightProfile
	Store     cache.Cache
	DB        *db.Manager
	Breakers  *circuit.Manager
	Limiter   *ratelimit.Limiter
	Budgets   *budget.Manager
	Client    *client.Client
	Adapters  *adapters.Registry
	Collector *collector.Collector
	Rates     *currency.Service
	Metrics   *Metrics

	startedAt time.Time
}

// New wires the full service tree from configuration. The database pool is
// opened (and pinged) here when persistence is enabled; call Close to release
// it.
func New(cfg *config.Config) (*Services, error) {
	weights, err := loadWeights(cfg.WeightsFile)
	if err != nil {
		return nil, err
	}

	store := cache.New()
	if cfg.Cache.RedisAddr != "" {
		store = cache.NewRedis(cfg.Cache.RedisAddr)
		log.Info().Str("addr", cfg.Cache.RedisAddr).Msg("using redis cache")
	}

	breakers := circuit.NewManager()
	budgets := budget.NewManager()
	limiter := ratelimit.NewLimiter(cfg.Collector.RateLimit.RPS, cfg.Collector.RateLimit.Burst)
	for slug, p := range cfg.Collector.Providers {
		if !p.Enabled {
			continue
		}
		breakers.AddProvider(slug, circuit.Config{
			FailureThreshold: p.Circuit.FailureThreshold,
			SuccessThreshold: p.Circuit.SuccessThreshold,
			Timeout:          p.Circuit.Timeout(),
			HalfOpenMaxCalls: p.Circuit.HalfOpenMaxCalls,
		})
		budgets.AddProvider(slug, int64(p.DailyBudget), cfg.Collector.Budget.ResetHour, cfg.Collector.Budget.WarnThreshold)
	}

	fetcher := client.New(client.Config{
		Timeout: cfg.Collector.Timeout(),
		Policy: client.RetryPolicy{
			MaxRetries: cfg.Collector.MaxRetries,
			Strategy:   client.ParseStrategy(cfg.Collector.Backoff.Strategy),
			BaseDelay:  cfg.Collector.Backoff.Base(),
			MaxDelay:   cfg.Collector.Backoff.Max(),
		},
	}, breakers, limiter, budgets)

	// Only adapters for enabled providers join the registry, so a disabled
	// provider is invisible to collection rather than a permanent failure.
	var active []adapters.Adapter
	for _, a := range adapters.Default().All() {
		if p, ok := cfg.Collector.Providers[a.Slug()]; ok && p.Enabled {
			active = append(active, a)
		}
	}
	registry := adapters.NewRegistry(active...)

	col := collector.New(registry, fetcher, store, collector.Config{
		Endpoints: cfg.Collector.Endpoints(),
		CacheTTL:  cfg.Cache.CollectorTTL(),
	})

	rates := currency.NewService(store, currency.NewHTTPSource(cfg.Currency.ExchangeRateURL))

	manager, err := db.NewManager(db.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime(),
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime(),
		QueryTimeout:    cfg.Database.QueryTimeout(),
		Enabled:         cfg.Database.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("database setup failed: %w", err)
	}

	return &Services{
		Config:    cfg,
		Weights:   weights,
		Store:     store,
		DB:        manager,
		Breakers:  breakers,
		Limiter:   limiter,
		Budgets:   budgets,
		Client:    fetcher,
		Adapters:  registry,
		Collector: col,
		Rates:     rates,
		Metrics:   NewMetrics(),
		startedAt: time.Now(),
	}, nil
}

// loadWeights reads the active weight profile, falling back to the built-in
// baseline when no file exists.
func loadWeights(path string) (*config.WeightProfile, error) {
	wc := config.GetDefaultWeightsConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := config.LoadWeightsConfig(path)
			if err != nil {
				return nil, err
			}
			wc = loaded
		} else {
			log.Debug().Str("path", path).Msg("weights file not found, using built-in profiles")
		}
	}

	profile, err := wc.GetActiveProfile()
	if err != nil {
		return nil, fmt.Errorf("weights config: %w", err)
	}
	for _, problem := range profile.ValidateProfile() {
		log.Warn().Str("profile", profile.Name).Msg(problem)
	}
	log.Info().Str("profile", profile.Name).Msg("provider weight profile loaded")
	return profile, nil
}

// Bootstrap applies the schema and seeds reference data. It is a no-op when
// persistence is disabled.
func (s *Services) Bootstrap(ctx context.Context) error {
	if !s.DB.IsEnabled() {
		log.Info().Msg("persistence disabled, running collect-only")
		return nil
	}
	if err := s.DB.Migrate(ctx); err != nil {
		return err
	}
	return s.DB.Seed(ctx, SeedCurrencies(), s.seedProviders())
}

// SeedCurrencies returns the supported currency reference rows.
func SeedCurrencies() []persistence.Currency {
	symbol := func(sym string) *string { return &sym }
	name := func(n string) *string { return &n }
	return []persistence.Currency{
		{Code: "TRY", Symbol: symbol("₺"), Name: name("Türk Lirası")},
		{Code: "USD", Symbol: symbol("$"), Name: name("US Dollar")},
		{Code: "EUR", Symbol: symbol("€"), Name: name("Euro")},
		{Code: "GBP", Symbol: symbol("£"), Name: name("British Pound")},
	}
}

// seedProviders builds the provider rows from the configured endpoints and
// the active weight profile.
func (s *Services) seedProviders() []persistence.Provider {
	endpoints := s.Config.Collector.Endpoints()

	var out []persistence.Provider
	for slug, p := range s.Config.Collector.Providers {
		if !p.Enabled {
			continue
		}
		name := p.Name
		if name == "" {
			name = slug
		}
		weights := s.Weights.GetProviderWeights(slug)
		quality := weights.DataQuality
		endpoint := endpoints[slug]

		out = append(out, persistence.Provider{
			Name:             name,
			Slug:             slug,
			BaseURL:          &endpoint,
			Country:          "Turkey",
			ReliabilityScore: weights.Reliability,
			DataQualityScore: &quality,
		})
	}
	return out
}

// Uptime reports how long the service tree has been running.
func (s *Services) Uptime() time.Duration {
	return time.Since(s.startedAt)
}

// RefreshGauges pushes current breaker and budget state into the metrics
// registry. Called after each batch and by the stats endpoint.
func (s *Services) RefreshGauges() {
	s.Metrics.UpdateCircuitStates(s.Breakers.Stats())
	s.Metrics.UpdateBudgets(s.Budgets.Stats())
}

// Close releases held resources.
func (s *Services) Close() error {
	return s.DB.Close()
}
