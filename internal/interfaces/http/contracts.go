package http

import (
	"sort"
	"time"

	"github.com/peakgear/pricewatch/internal/collector"
	"github.com/peakgear/pricewatch/internal/currency"
	"github.com/peakgear/pricewatch/internal/model"
	"github.com/peakgear/pricewatch/internal/net/budget"
	"github.com/peakgear/pricewatch/internal/net/circuit"
	"github.com/peakgear/pricewatch/internal/net/ratelimit"
)

// ErrorResponse is the uniform error envelope for every non-2xx answer.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ProviderCollectResponse is one provider's collection result including the
// collected records.
type ProviderCollectResponse struct {
	collector.ProviderResult
	Products []model.UnifiedRecord `json:"products"`
}

// ProductsResponse lists collected records after filtering.
type ProductsResponse struct {
	Total    int                   `json:"total"`
	Products []model.UnifiedRecord `json:"products"`
}

// ProvidersInvalidated reports which provider caches were dropped.
type ProvidersInvalidated struct {
	Success   bool     `json:"success"`
	Providers []string `json:"providers"`
}

// HealthResponse is the liveness envelope.
type HealthResponse struct {
	Status        string            `json:"status"`
	Components    map[string]string `json:"components"`
	UptimeSeconds float64           `json:"uptime_seconds"`
}

// ProviderStatus summarizes one provider for the stats endpoint. The
// recommended weight folds the breaker state into the historical reliability:
// an open circuit zeroes the weight, a probing one halves it.
type ProviderStatus struct {
	Name              string  `json:"name"`
	ReliabilityScore  float64 `json:"reliability_score"`
	CircuitState      string  `json:"circuit_state"`
	RecommendedWeight float64 `json:"recommended_weight"`
	FailureCount      int     `json:"failure_count"`
}

// StatsResponse is the observability snapshot served by /api/v1/stats.
type StatsResponse struct {
	Status          string                            `json:"status"`
	UptimeSeconds   float64                           `json:"uptime_seconds"`
	Providers       []ProviderStatus                  `json:"providers"`
	TotalProviders  int                               `json:"total_providers"`
	HealthyCount    int                               `json:"healthy_count"`
	CircuitBreakers map[string]circuit.Stats          `json:"circuit_breakers"`
	Budgets         map[string]budget.Stats           `json:"budgets"`
	RateLimits      map[string]ratelimit.LimiterStats `json:"rate_limits"`
	Database        map[string]interface{}            `json:"database"`
}

// buildProviderStatuses folds breaker states into per-provider reliability
// summaries, most reliable first.
func buildProviderStatuses(slugs []string, reliability func(string) float64, circuits map[string]circuit.Stats) []ProviderStatus {
	out := make([]ProviderStatus, 0, len(slugs))
	for _, slug := range slugs {
		rel := reliability(slug)
		state := "unknown"
		failures := 0
		if cb, ok := circuits[slug]; ok {
			state = cb.State
			failures = cb.FailureCount
		}

		weight := rel
		switch state {
		case circuit.StateOpen.String():
			weight = 0
		case circuit.StateHalfOpen.String():
			weight = rel * 0.5
		}

		out = append(out, ProviderStatus{
			Name:              slug,
			ReliabilityScore:  rel,
			CircuitState:      state,
			RecommendedWeight: currency.Round2(weight),
			FailureCount:      failures,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReliabilityScore > out[j].ReliabilityScore
	})
	return out
}
