package app

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peakgear/pricewatch/internal/collector"
	"github.com/peakgear/pricewatch/internal/net/circuit"
	"github.com/peakgear/pricewatch/internal/pipeline"
)

func TestMetrics_ObserveCollection(t *testing.T) {
	m := NewMetrics()

	report := &collector.CollectionReport{
		Results: []collector.ProviderResult{
			{ProviderName: "sport-direct", Success: true},
			{ProviderName: "outdoor-pro", Success: true, FromCache: true},
			{ProviderName: "dag-spor", Skipped: true},
			{ProviderName: "alpine-gear", ErrorMessage: "boom"},
		},
	}
	m.ObserveCollection(report)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderFetches.WithLabelValues("sport-direct", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderFetches.WithLabelValues("outdoor-pro", "cache")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderFetches.WithLabelValues("dag-spor", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderFetches.WithLabelValues("alpine-gear", "failed")))

	// One cache hit out of four attempts
	assert.InDelta(t, 0.25, testutil.ToFloat64(m.CacheHitRatio), 1e-9)
}

func TestMetrics_CacheHitRatio(t *testing.T) {
	m := NewMetrics()

	m.RecordCacheHit("collector")
	m.RecordCacheHit("collector")
	m.RecordCacheHit("rates")
	m.RecordCacheMiss("rates")

	assert.InDelta(t, 0.75, testutil.ToFloat64(m.CacheHitRatio), 1e-9)
}

func TestMetrics_ObservePipeline(t *testing.T) {
	m := NewMetrics()

	pc := pipeline.NewContext(nil)
	pc.Meta["normalize_currency_duration_ms"] = int64(12)
	pc.Meta["mappings_processed"] = 5 // not a duration, must be ignored
	pc.AddError("ID 7: price unparsable")
	pc.Fail("save_price_history", assert.AnError)

	m.ObservePipeline(pc, 6)

	assert.Equal(t, 6.0, testutil.ToFloat64(m.PipelineItems.WithLabelValues("entered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineErrors.WithLabelValues("item")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineErrors.WithLabelValues("fault")))

	count := testutil.CollectAndCount(m.StageDuration, "pricewatch_stage_duration_seconds")
	assert.Equal(t, 1, count)
}

func TestMetrics_CircuitStateGauge(t *testing.T) {
	m := NewMetrics()

	m.UpdateCircuitStates(map[string]circuit.Stats{
		"sport-direct": {State: "closed"},
		"dag-spor":     {State: "half_open"},
		"alpine-gear":  {State: "open"},
	})

	assert.Equal(t, 0.0, testutil.ToFloat64(m.CircuitState.WithLabelValues("sport-direct")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitState.WithLabelValues("dag-spor")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CircuitState.WithLabelValues("alpine-gear")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveBatch(TriggerAPI, OutcomeCommitted, 1.5)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "pricewatch_batches_total")
	assert.Contains(t, rec.Body.String(), `trigger="api"`)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	// Two registries must coexist without duplicate registration panics.
	a := NewMetrics()
	b := NewMetrics()

	a.ObserveBatch(TriggerCLI, OutcomeCollectOnly, time.Second.Seconds())
	assert.Equal(t, 1.0, testutil.ToFloat64(a.BatchesTotal.WithLabelValues(TriggerCLI, OutcomeCollectOnly)))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.BatchesTotal.WithLabelValues(TriggerCLI, OutcomeCollectOnly)))
}
