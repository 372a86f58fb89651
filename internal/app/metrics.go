package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	io_prometheus_client "github.com/prometheus/client_model/go"

	"github.com/peakgear/pricewatch/internal/collector"
	"github.com/peakgear/pricewatch/internal/net/budget"
	"github.com/peakgear/pricewatch/internal/net/circuit"
	"github.com/peakgear/pricewatch/internal/pipeline"
)

// Metrics holds all Prometheus metrics for pricewatch. Every instance owns
// its registry, so tests can build service trees freely without duplicate
// registration panics.
type Metrics struct {
	registry *prometheus.Registry

	// Batch metrics
	BatchesTotal  *prometheus.CounterVec
	BatchDuration prometheus.Histogram

	// Collection metrics
	ProviderFetches   *prometheus.CounterVec
	ProductsCollected *prometheus.GaugeVec

	// Cache performance metrics
	CacheHitRatio prometheus.Gauge
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec

	// Pipeline metrics
	StageDuration  *prometheus.HistogramVec
	PipelineItems  *prometheus.CounterVec
	PipelineErrors *prometheus.CounterVec

	// Resilience metrics
	CircuitState    *prometheus.GaugeVec
	BudgetRemaining *prometheus.GaugeVec

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// Batch outcomes recorded under pricewatch_batches_total.
const (
	OutcomeCommitted   = "committed"
	OutcomeRolledBack  = "rolled_back"
	OutcomeCollectOnly = "collect_only"
)

// NewMetrics creates a metrics registry with all pricewatch metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		BatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewatch_batches_total",
				Help: "Total number of collection batches by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),

		BatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pricewatch_batch_duration_seconds",
				Help:    "End-to-end duration of one collection batch in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
		),

		ProviderFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewatch_provider_fetches_total",
				Help: "Per-provider collection outcomes",
			},
			[]string{"provider", "outcome"},
		),

		ProductsCollected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricewatch_products_collected",
				Help: "Products returned by the last collection per provider",
			},
			[]string{"provider"},
		),

		CacheHitRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pricewatch_cache_hit_ratio",
				Help: "Current cache hit ratio (0.0 to 1.0)",
			},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewatch_cache_hits_total",
				Help: "Total number of cache hits by cache type",
			},
			[]string{"cache_type"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewatch_cache_misses_total",
				Help: "Total number of cache misses by cache type",
			},
			[]string{"cache_type"},
		),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricewatch_stage_duration_seconds",
				Help:    "Duration of each analysis stage in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"stage"},
		),

		PipelineItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewatch_pipeline_items_total",
				Help: "Records entering and surviving the analysis pipeline",
			},
			[]string{"point"},
		),

		PipelineErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewatch_pipeline_errors_total",
				Help: "Pipeline diagnostics by severity",
			},
			[]string{"severity"},
		),

		CircuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricewatch_circuit_state",
				Help: "Circuit breaker state per provider (0=closed, 1=half_open, 2=open)",
			},
			[]string{"provider"},
		),

		BudgetRemaining: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricewatch_budget_remaining",
				Help: "Remaining daily request budget per provider",
			},
			[]string{"provider"},
		),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricewatch_http_requests_total",
				Help: "HTTP requests served by route, method and status",
			},
			[]string{"route", "method", "status"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricewatch_http_request_duration_seconds",
				Help:    "HTTP request duration by route",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"route"},
		),
	}

	m.registry.MustRegister(
		m.BatchesTotal,
		m.BatchDuration,
		m.ProviderFetches,
		m.ProductsCollected,
		m.CacheHitRatio,
		m.CacheHits,
		m.CacheMisses,
		m.StageDuration,
		m.PipelineItems,
		m.PipelineErrors,
		m.CircuitState,
		m.BudgetRemaining,
		m.RequestsTotal,
		m.RequestDuration,
	)

	return m
}

// ObserveCollection records the per-provider outcomes of one collection run.
// Cache hits count toward the collector hit ratio; every fresh fetch attempt
// counts as a miss.
func (m *Metrics) ObserveCollection(report *collector.CollectionReport) {
	for _, pr := range report.Results {
		outcome := "failed"
		switch {
		case pr.FromCache:
			outcome = "cache"
		case pr.Success:
			outcome = "success"
		case pr.Skipped:
			outcome = "skipped"
		}
		m.ProviderFetches.WithLabelValues(pr.ProviderName, outcome).Inc()
		m.ProductsCollected.WithLabelValues(pr.ProviderName).Set(float64(pr.ProductCount()))

		if pr.FromCache {
			m.RecordCacheHit("collector")
		} else {
			m.RecordCacheMiss("collector")
		}
	}
}

// ObservePipeline records stage timings and diagnostics from a finished run.
func (m *Metrics) ObservePipeline(pc *pipeline.Context, entered int) {
	for key, value := range pc.Meta {
		const suffix = "_duration_ms"
		if len(key) <= len(suffix) || key[len(key)-len(suffix):] != suffix {
			continue
		}
		ms, ok := value.(int64)
		if !ok {
			continue
		}
		stage := key[:len(key)-len(suffix)]
		m.StageDuration.WithLabelValues(stage).Observe(float64(ms) / 1000)
	}

	m.PipelineItems.WithLabelValues("entered").Add(float64(entered))
	m.PipelineErrors.WithLabelValues("item").Add(float64(len(pc.Errors) - len(pc.HardErrors())))
	m.PipelineErrors.WithLabelValues("fault").Add(float64(len(pc.HardErrors())))
}

// ObserveBatch records the batch outcome and duration.
func (m *Metrics) ObserveBatch(trigger, outcome string, seconds float64) {
	m.BatchesTotal.WithLabelValues(trigger, outcome).Inc()
	m.BatchDuration.Observe(seconds)
}

// RecordCacheHit records a cache hit for the specified cache type.
func (m *Metrics) RecordCacheHit(cacheType string) {
	m.CacheHits.WithLabelValues(cacheType).Inc()
	m.updateCacheHitRatio()
}

// RecordCacheMiss records a cache miss for the specified cache type.
func (m *Metrics) RecordCacheMiss(cacheType string) {
	m.CacheMisses.WithLabelValues(cacheType).Inc()
	m.updateCacheHitRatio()
}

// UpdateCircuitStates reflects breaker states into the state gauge.
func (m *Metrics) UpdateCircuitStates(stats map[string]circuit.Stats) {
	for provider, s := range stats {
		m.CircuitState.WithLabelValues(provider).Set(circuitGaugeValue(s.State))
	}
}

// UpdateBudgets reflects remaining daily budgets into the budget gauge.
func (m *Metrics) UpdateBudgets(stats map[string]budget.Stats) {
	for provider, s := range stats {
		m.BudgetRemaining.WithLabelValues(provider).Set(float64(s.Remaining))
	}
}

// RecordRequest records one served HTTP request.
func (m *Metrics) RecordRequest(route, method string, status int, seconds float64) {
	m.RequestsTotal.WithLabelValues(route, method, statusClass(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(seconds)
}

// updateCacheHitRatio recomputes the hit ratio gauge from the hit and miss
// counters across all cache types.
func (m *Metrics) updateCacheHitRatio() {
	hitMetric := &io_prometheus_client.Metric{}
	missMetric := &io_prometheus_client.Metric{}

	totalHits := 0.0
	totalMisses := 0.0

	cacheTypes := []string{"collector", "rates"}

	for _, cacheType := range cacheTypes {
		if hitCounter, err := m.CacheHits.GetMetricWithLabelValues(cacheType); err == nil {
			if err := hitCounter.Write(hitMetric); err == nil {
				totalHits += hitMetric.GetCounter().GetValue()
			}
		}

		if missCounter, err := m.CacheMisses.GetMetricWithLabelValues(cacheType); err == nil {
			if err := missCounter.Write(missMetric); err == nil {
				totalMisses += missMetric.GetCounter().GetValue()
			}
		}
	}

	total := totalHits + totalMisses
	if total > 0 {
		m.CacheHitRatio.Set(totalHits / total)
	}
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func circuitGaugeValue(state string) float64 {
	switch state {
	case circuit.StateHalfOpen.String():
		return 1
	case circuit.StateOpen.String():
		return 2
	default:
		return 0
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
