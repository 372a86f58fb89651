// Package config loads the pricewatch configuration: one YAML file for the
// application (collector, pipeline, database, HTTP) plus a separate provider
// weight profile file. Missing required settings are fatal at bootstrap and
// nowhere else.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Currency  CurrencyConfig  `yaml:"currency"`
	Collector CollectorConfig `yaml:"collector"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// WeightsFile points at the provider weight profiles (separate file,
	// see weights.go).
	WeightsFile string `yaml:"weights_file"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `yaml:"level"` // trace|debug|info|warn|error
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	ReadTimeoutSecs  int    `yaml:"read_timeout_secs"`
	WriteTimeoutSecs int    `yaml:"write_timeout_secs"`
	IdleTimeoutSecs  int    `yaml:"idle_timeout_secs"`
}

// Addr returns the host:port the server binds to.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ReadTimeout returns the request read timeout as a time.Duration.
func (c HTTPConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSecs) * time.Second
}

// WriteTimeout returns the response write timeout as a time.Duration.
func (c HTTPConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSecs) * time.Second
}

// IdleTimeout returns the keep-alive idle timeout as a time.Duration.
func (c HTTPConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSecs) * time.Second
}

// DatabaseConfig configures the PostgreSQL pool. Enabled false runs the
// collector without persistence (no analysis pipeline).
type DatabaseConfig struct {
	Enabled             bool   `yaml:"enabled"`
	DSN                 string `yaml:"dsn"`
	MaxOpenConns        int    `yaml:"max_open_conns"`
	MaxIdleConns        int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSecs int    `yaml:"conn_max_lifetime_secs"`
	ConnMaxIdleTimeSecs int    `yaml:"conn_max_idle_time_secs"`
	QueryTimeoutSecs    int    `yaml:"query_timeout_secs"`
}

// ConnMaxLifetime returns the connection lifetime cap as a time.Duration.
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeSecs) * time.Second
}

// ConnMaxIdleTime returns the idle connection cap as a time.Duration.
func (c DatabaseConfig) ConnMaxIdleTime() time.Duration {
	return time.Duration(c.ConnMaxIdleTimeSecs) * time.Second
}

// QueryTimeout returns the per-statement timeout as a time.Duration.
func (c DatabaseConfig) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSecs) * time.Second
}

// CacheConfig selects the cache backend. An empty RedisAddr selects the
// in-memory store.
type CacheConfig struct {
	RedisAddr        string `yaml:"redis_addr"`
	CollectorTTLSecs int    `yaml:"collector_ttl_secs"` // Per-provider record cache TTL
}

// CollectorTTL returns the collector cache TTL as a time.Duration.
func (c CacheConfig) CollectorTTL() time.Duration {
	return time.Duration(c.CollectorTTLSecs) * time.Second
}

// CurrencyConfig configures the exchange-rate service. Base is informational;
// the conversion code normalizes to TRY.
type CurrencyConfig struct {
	Base            string `yaml:"base"`
	ExchangeRateURL string `yaml:"exchange_rate_url"`
}

// CollectorConfig carries the fetch policy shared by all providers plus the
// per-provider entries.
type CollectorConfig struct {
	// BaseURL prefixes provider paths that are not absolute URLs.
	BaseURL     string                    `yaml:"base_url"`
	TimeoutSecs int                       `yaml:"timeout_secs"` // Per-request timeout
	MaxRetries  int                       `yaml:"max_retries"`
	Backoff     BackoffConfig             `yaml:"backoff"`
	RateLimit   RateLimitConfig           `yaml:"rate_limit"`
	Budget      BudgetConfig              `yaml:"budget"`
	Providers   map[string]ProviderConfig `yaml:"providers"`
}

// Timeout returns the per-request timeout as a time.Duration.
func (c CollectorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Endpoints resolves the catalog URL for every enabled provider.
func (c CollectorConfig) Endpoints() map[string]string {
	endpoints := make(map[string]string, len(c.Providers))
	for slug, p := range c.Providers {
		if !p.Enabled {
			continue
		}
		endpoints[slug] = p.URL(c.BaseURL)
	}
	return endpoints
}

// EnabledSlugs lists the providers collection targets.
func (c CollectorConfig) EnabledSlugs() []string {
	var slugs []string
	for slug, p := range c.Providers {
		if p.Enabled {
			slugs = append(slugs, slug)
		}
	}
	return slugs
}

// BackoffConfig represents retry backoff configuration.
type BackoffConfig struct {
	Strategy string `yaml:"strategy"` // exponential|linear|fixed
	BaseMS   int    `yaml:"base_ms"`  // Base backoff in milliseconds
	MaxMS    int    `yaml:"max_ms"`   // Maximum backoff in milliseconds
}

// Base returns the base backoff as a time.Duration.
func (b BackoffConfig) Base() time.Duration {
	return time.Duration(b.BaseMS) * time.Millisecond
}

// Max returns the maximum backoff as a time.Duration.
func (b BackoffConfig) Max() time.Duration {
	return time.Duration(b.MaxMS) * time.Millisecond
}

// RateLimitConfig is the default token bucket applied per provider host.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// BudgetConfig represents daily request budget management.
type BudgetConfig struct {
	WarnThreshold float64 `yaml:"warn_threshold"` // Warn at this fraction of daily budget
	ResetHour     int     `yaml:"reset_hour"`     // UTC hour to reset budgets (0-23)
}

// ProviderConfig represents one retail provider entry.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Path        string        `yaml:"path"`     // Catalog endpoint, absolute or relative to collector base_url
	BaseURL     string        `yaml:"base_url"` // Per-provider override of the collector base URL
	Enabled     bool          `yaml:"enabled"`
	DailyBudget int           `yaml:"daily_budget"` // Max requests per UTC day; 0 disables tracking
	Circuit     CircuitConfig `yaml:"circuit"`
}

// URL resolves the provider's catalog URL against the collector base.
func (p ProviderConfig) URL(collectorBase string) string {
	if isAbsoluteURL(p.Path) {
		return p.Path
	}
	base := p.BaseURL
	if base == "" {
		base = collectorBase
	}
	return base + p.Path
}

func isAbsoluteURL(s string) bool {
	return len(s) > 8 && (s[:7] == "http://" || s[:8] == "https://")
}

// CircuitConfig represents per-provider circuit breaker thresholds. Zero
// values select the breaker defaults.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold"` // Consecutive failures to open circuit
	SuccessThreshold int `yaml:"success_threshold"` // Successes needed to close circuit
	TimeoutSecs      int `yaml:"timeout_secs"`      // Cool-down before half-open probing
	HalfOpenMaxCalls int `yaml:"half_open_max_calls"`
}

// Timeout returns the breaker cool-down as a time.Duration.
func (c CircuitConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// PipelineConfig carries the analysis stage tunables.
type PipelineConfig struct {
	HistoryLimit       int     `yaml:"history_limit"`
	ArbitrageThreshold float64 `yaml:"arbitrage_threshold"`
	TopTrending        int     `yaml:"top_trending"`
	EnableProfitMargin bool    `yaml:"enable_profit_margin"`
}

// SchedulerConfig configures the periodic batch trigger.
type SchedulerConfig struct {
	IntervalSecs int  `yaml:"interval_secs"`
	RunOnStart   bool `yaml:"run_on_start"`
}

// Interval returns the tick interval as a time.Duration.
func (c SchedulerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSecs) * time.Second
}

// Default returns the configuration used when no file is given: the four
// known providers against a local fake provider server, in-memory cache,
// persistence disabled. Breaker thresholds follow each provider's observed
// error rate, so flaky sources trip sooner and stay open longer.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		HTTP: HTTPConfig{
			Host:             "127.0.0.1",
			Port:             8080,
			ReadTimeoutSecs:  10,
			WriteTimeoutSecs: 10,
			IdleTimeoutSecs:  60,
		},
		Database: DatabaseConfig{
			MaxOpenConns:        10,
			MaxIdleConns:        5,
			ConnMaxLifetimeSecs: 1800,
			ConnMaxIdleTimeSecs: 300,
			QueryTimeoutSecs:    10,
		},
		Cache: CacheConfig{CollectorTTLSecs: 300},
		Currency: CurrencyConfig{
			Base:            "TRY",
			ExchangeRateURL: "https://api.exchangerate-api.com/v4/latest/USD",
		},
		Collector: CollectorConfig{
			BaseURL:     "http://localhost:8002/api/v1/providers",
			TimeoutSecs: 30,
			MaxRetries:  3,
			Backoff:     BackoffConfig{Strategy: "exponential", BaseMS: 1000, MaxMS: 60000},
			RateLimit:   RateLimitConfig{RPS: 4, Burst: 8},
			Budget:      BudgetConfig{WarnThreshold: 0.8, ResetHour: 0},
			Providers: map[string]ProviderConfig{
				"sport-direct": {
					Name: "SportDirect", Path: "/sport-direct/products", Enabled: true,
					Circuit: CircuitConfig{FailureThreshold: 10, SuccessThreshold: 2, TimeoutSecs: 30},
				},
				"outdoor-pro": {
					Name: "OutdoorPro", Path: "/outdoor-pro/products", Enabled: true,
					Circuit: CircuitConfig{FailureThreshold: 7, SuccessThreshold: 2, TimeoutSecs: 45},
				},
				"dag-spor": {
					Name: "DagSpor", Path: "/dag-spor/products", Enabled: true,
					Circuit: CircuitConfig{FailureThreshold: 5, SuccessThreshold: 3, TimeoutSecs: 60},
				},
				"alpine-gear": {
					Name: "AlpineGear", Path: "/alpine-gear/products", Enabled: true,
					Circuit: CircuitConfig{FailureThreshold: 3, SuccessThreshold: 3, TimeoutSecs: 90},
				},
			},
		},
		Pipeline: PipelineConfig{
			HistoryLimit:       10,
			ArbitrageThreshold: 10.0,
			TopTrending:        5,
			EnableProfitMargin: true,
		},
		Scheduler:   SchedulerConfig{IntervalSecs: 30, RunOnStart: true},
		WeightsFile: "config/provider_weights.yaml",
	}
}

// Load reads the configuration file, layers environment overrides on top,
// and validates the result. An empty path loads defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnv layers deployment-environment overrides over the file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("PRICEWATCH_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
		c.Database.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("EXCHANGE_RATE_URL"); v != "" {
		c.Currency.ExchangeRateURL = v
	}
	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		c.Collector.BaseURL = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTP.Port = port
		}
	}
}

// Validate ensures the configuration is complete and consistent.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level %q not recognized", c.Log.Level)
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port must be in (0, 65535], got %d", c.HTTP.Port)
	}

	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required when database is enabled")
	}

	if c.Currency.ExchangeRateURL == "" {
		return fmt.Errorf("currency exchange_rate_url cannot be empty")
	}

	if err := c.Collector.Validate(); err != nil {
		return fmt.Errorf("collector: %w", err)
	}

	if c.Pipeline.HistoryLimit < 0 {
		return fmt.Errorf("pipeline history_limit cannot be negative, got %d", c.Pipeline.HistoryLimit)
	}
	if c.Pipeline.TopTrending <= 0 {
		return fmt.Errorf("pipeline top_trending must be positive, got %d", c.Pipeline.TopTrending)
	}

	if c.Scheduler.IntervalSecs <= 0 {
		return fmt.Errorf("scheduler interval_secs must be positive, got %d", c.Scheduler.IntervalSecs)
	}

	return nil
}

// Validate ensures the collector section is consistent.
func (c *CollectorConfig) Validate() error {
	if c.TimeoutSecs <= 0 {
		return fmt.Errorf("timeout_secs must be positive, got %d", c.TimeoutSecs)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", c.MaxRetries)
	}
	if c.Backoff.BaseMS <= 0 {
		return fmt.Errorf("backoff base_ms must be positive, got %d", c.Backoff.BaseMS)
	}
	if c.Backoff.MaxMS < c.Backoff.BaseMS {
		return fmt.Errorf("backoff max_ms (%d) must be >= base_ms (%d)", c.Backoff.MaxMS, c.Backoff.BaseMS)
	}
	if c.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate_limit rps must be positive, got %g", c.RateLimit.RPS)
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit burst must be positive, got %d", c.RateLimit.Burst)
	}
	if c.Budget.WarnThreshold <= 0 || c.Budget.WarnThreshold > 1 {
		return fmt.Errorf("budget warn_threshold must be between 0 and 1, got %g", c.Budget.WarnThreshold)
	}
	if c.Budget.ResetHour < 0 || c.Budget.ResetHour > 23 {
		return fmt.Errorf("budget reset_hour must be between 0 and 23, got %d", c.Budget.ResetHour)
	}

	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}
	enabled := 0
	for slug, p := range c.Providers {
		if err := p.Validate(c.BaseURL); err != nil {
			return fmt.Errorf("provider %s: %w", slug, err)
		}
		if p.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("every provider is disabled")
	}
	return nil
}

// Validate ensures a provider entry resolves to a usable endpoint.
func (p *ProviderConfig) Validate(collectorBase string) error {
	if p.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if !isAbsoluteURL(p.Path) && p.BaseURL == "" && collectorBase == "" {
		return fmt.Errorf("relative path %q needs a base_url", p.Path)
	}
	if p.DailyBudget < 0 {
		return fmt.Errorf("daily_budget cannot be negative, got %d", p.DailyBudget)
	}
	return nil
}
