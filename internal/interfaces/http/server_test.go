package http

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peakgear/pricewatch/internal/app"
	"github.com/peakgear/pricewatch/internal/config"
)

const dagSporBody = `{"urunler":[{
	"urun_id": "DS-001",
	"urun_adi": "NorthFace Stormbreak 2 Çadır",
	"marka": "NorthFace",
	"kategori": "Kamp",
	"alt_kategori": "Çadır",
	"renk": "Kırmızı",
	"fiyat": "4.500,00",
	"stok_adedi": 12,
	"stokta_var": true
}]}`

// newTestServer wires a real service tree against a fake upstream that only
// answers for dag-spor; every other provider path returns 500. The returned
// counter tracks dag-spor fetches that reached the upstream.
func newTestServer(t *testing.T, slugs ...string) (*Server, *app.Services, *atomic.Int64) {
	t.Helper()
	if len(slugs) == 0 {
		slugs = []string{"dag-spor"}
	}

	var hits atomic.Int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/dag-spor/products") {
			hits.Add(1)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, dagSporBody)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(upstream.Close)

	cfg := config.Default()
	cfg.HTTP.Port = 0
	cfg.Collector.BaseURL = upstream.URL + "/api/v1/providers"
	cfg.Collector.MaxRetries = 1
	cfg.Collector.Backoff = config.BackoffConfig{Strategy: "fixed", BaseMS: 1, MaxMS: 1}
	cfg.Collector.RateLimit = config.RateLimitConfig{RPS: 1000, Burst: 1000}
	for slug, p := range cfg.Collector.Providers {
		p.Enabled = false
		for _, want := range slugs {
			if slug == want {
				p.Enabled = true
			}
		}
		cfg.Collector.Providers[slug] = p
	}

	svc, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	server, err := NewServer(svc, cfg.HTTP)
	require.NoError(t, err)
	return server, svc, &hits
}

func doRequest(t *testing.T, server *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out),
		"body was: %s", rec.Body.String())
}

func TestNewServer_PortBusy(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	_, svc, _ := newTestServer(t)
	cfg := config.Default()
	cfg.HTTP.Port = listener.Addr().(*net.TCPAddr).Port

	_, err = NewServer(svc, cfg.HTTP)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "busy or unavailable")
}

func TestServer_Healthz(t *testing.T) {
	server, _, _ := newTestServer(t)

	rec := doRequest(t, server, "GET", "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	decodeJSON(t, rec, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Components["cache"])
	assert.Equal(t, "disabled", health.Components["database"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_Collect(t *testing.T) {
	server, _, hits := newTestServer(t)

	rec := doRequest(t, server, "GET", "/api/v1/collect")
	require.Equal(t, http.StatusOK, rec.Code)

	var batch app.BatchResult
	decodeJSON(t, rec, &batch)
	assert.Equal(t, app.TriggerAPI, batch.TriggeredBy)
	assert.Equal(t, 1, batch.RecordCount)
	assert.False(t, batch.Analyzed, "analysis must be opt-in")
	require.NotNil(t, batch.Report)
	assert.Equal(t, 1, batch.Report.Stats.SuccessfulProviders)
	assert.EqualValues(t, 1, hits.Load())

	// Second call is served from cache.
	rec = doRequest(t, server, "GET", "/api/v1/collect")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &batch)
	require.Len(t, batch.Report.Results, 1)
	assert.True(t, batch.Report.Results[0].FromCache)
	assert.EqualValues(t, 1, hits.Load())

	// use_cache=false forces a fresh fetch.
	rec = doRequest(t, server, "GET", "/api/v1/collect?use_cache=false")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, hits.Load())
}

func TestServer_CollectProvider(t *testing.T) {
	server, _, _ := newTestServer(t)

	rec := doRequest(t, server, "GET", "/api/v1/collect/dag-spor")
	require.Equal(t, http.StatusOK, rec.Code)

	var result ProviderCollectResponse
	decodeJSON(t, rec, &result)
	assert.Equal(t, "dag-spor", result.ProviderName)
	assert.True(t, result.Success)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "NorthFace Stormbreak 2 Çadır", result.Products[0].Name)
}

func TestServer_CollectProviderUnknown(t *testing.T) {
	server, _, _ := newTestServer(t)

	rec := doRequest(t, server, "GET", "/api/v1/collect/trendy-sport")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var envelope ErrorResponse
	decodeJSON(t, rec, &envelope)
	assert.Contains(t, envelope.Message, "available: dag-spor")
	assert.NotEmpty(t, envelope.RequestID)
}

func TestServer_CollectProviderUpstreamFailure(t *testing.T) {
	server, _, _ := newTestServer(t, "dag-spor", "alpine-gear")

	rec := doRequest(t, server, "GET", "/api/v1/collect/alpine-gear")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var envelope ErrorResponse
	decodeJSON(t, rec, &envelope)
	assert.Contains(t, envelope.Message, "alpine-gear failed")
}

func TestServer_Products(t *testing.T) {
	server, _, _ := newTestServer(t)

	cases := []struct {
		name   string
		target string
		total  int
	}{
		{"no filters", "/api/v1/products", 1},
		{"category match", "/api/v1/products?category=kamp", 1},
		{"category miss", "/api/v1/products?category=Koşu", 0},
		{"brand case-insensitive", "/api/v1/products?brand=northface", 1},
		{"price in range", "/api/v1/products?min_price=1000&max_price=5000", 1},
		{"price below min", "/api/v1/products?min_price=5000", 0},
		{"explicit provider", "/api/v1/products?provider=dag-spor", 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, server, "GET", tc.target)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp ProductsResponse
			decodeJSON(t, rec, &resp)
			assert.Equal(t, tc.total, resp.Total)
			assert.Len(t, resp.Products, tc.total)
		})
	}
}

func TestServer_ProductsBadFilter(t *testing.T) {
	server, _, _ := newTestServer(t)

	rec := doRequest(t, server, "GET", "/api/v1/products?min_price=cheap")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, server, "GET", "/api/v1/products?provider=trendy-sport")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Stats(t *testing.T) {
	server, svc, _ := newTestServer(t, "dag-spor", "alpine-gear")

	rec := doRequest(t, server, "GET", "/api/v1/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats StatsResponse
	decodeJSON(t, rec, &stats)
	require.Len(t, stats.Providers, 2)
	assert.Equal(t, 2, stats.TotalProviders)
	assert.Equal(t, 2, stats.HealthyCount)

	// Sorted by reliability, most reliable first.
	assert.Equal(t, "dag-spor", stats.Providers[0].Name)
	assert.InDelta(t, 0.85, stats.Providers[0].ReliabilityScore, 1e-9)
	assert.InDelta(t, 0.85, stats.Providers[0].RecommendedWeight, 1e-9)
	assert.Equal(t, "alpine-gear", stats.Providers[1].Name)

	// An open breaker zeroes the recommended weight.
	svc.Breakers.GetBreaker("alpine-gear").ForceOpen()
	rec = doRequest(t, server, "GET", "/api/v1/stats")
	decodeJSON(t, rec, &stats)
	assert.Equal(t, "open", stats.Providers[1].CircuitState)
	assert.Zero(t, stats.Providers[1].RecommendedWeight)
	assert.Equal(t, 1, stats.HealthyCount)
}

func TestServer_InvalidateCache(t *testing.T) {
	server, _, hits := newTestServer(t)

	// Warm the cache, then drop it and confirm the next collect refetches.
	doRequest(t, server, "GET", "/api/v1/collect")
	require.EqualValues(t, 1, hits.Load())

	rec := doRequest(t, server, "POST", "/api/v1/invalidate-cache?provider=dag-spor")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProvidersInvalidated
	decodeJSON(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"dag-spor"}, resp.Providers)

	doRequest(t, server, "GET", "/api/v1/collect")
	assert.EqualValues(t, 2, hits.Load())

	rec = doRequest(t, server, "POST", "/api/v1/invalidate-cache")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &resp)
	assert.Equal(t, []string{"dag-spor"}, resp.Providers)

	rec = doRequest(t, server, "POST", "/api/v1/invalidate-cache?provider=trendy-sport")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_NotFound(t *testing.T) {
	server, _, _ := newTestServer(t)

	rec := doRequest(t, server, "GET", "/api/v2/everything")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var envelope ErrorResponse
	decodeJSON(t, rec, &envelope)
	assert.Equal(t, "Not Found", envelope.Error)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)

	doRequest(t, server, "GET", "/api/v1/collect")

	rec := doRequest(t, server, "GET", "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pricewatch_provider_fetches_total")
	assert.Contains(t, rec.Body.String(), `route="/api/v1/collect"`)
}
