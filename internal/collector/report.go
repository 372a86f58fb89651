package collector

import (
	"time"

	"github.com/peakgear/pricewatch/internal/model"
)

// ProviderResult is the outcome of collecting from a single provider.
// Skipped marks a provider refused by an open circuit breaker; skipped
// providers are neither successes nor failures in the aggregate stats.
type ProviderResult struct {
	ProviderName   string                `json:"provider_name"`
	Success        bool                  `json:"success"`
	Skipped        bool                  `json:"skipped,omitempty"`
	Products       []model.UnifiedRecord `json:"-"`
	ErrorMessage   string                `json:"error_message,omitempty"`
	ResponseTimeMS int64                 `json:"response_time_ms"`
	FromCache      bool                  `json:"from_cache"`
	FetchedAt      time.Time             `json:"fetched_at"`
}

// ProductCount returns the number of records collected from this provider.
func (r ProviderResult) ProductCount() int {
	return len(r.Products)
}

// Stats aggregates one collection run across all targeted providers.
type Stats struct {
	TotalProviders      int   `json:"total_providers"`
	SuccessfulProviders int   `json:"successful_providers"`
	FailedProviders     int   `json:"failed_providers"`
	SkippedProviders    int   `json:"skipped_providers"`
	TotalProducts       int   `json:"total_products"`
	TotalTimeMS         int64 `json:"total_time_ms"`
}

// SuccessRate returns the percentage of targeted providers that succeeded.
func (s Stats) SuccessRate() float64 {
	if s.TotalProviders == 0 {
		return 0
	}
	return float64(s.SuccessfulProviders) / float64(s.TotalProviders) * 100
}

// CollectionReport holds per-provider results plus aggregate stats for one
// collection run.
type CollectionReport struct {
	Results     []ProviderResult `json:"results"`
	Stats       Stats            `json:"stats"`
	CollectedAt time.Time        `json:"collected_at"`
}

// AllRecords merges the records of every successful provider, preserving
// provider order.
func (r *CollectionReport) AllRecords() []model.UnifiedRecord {
	var out []model.UnifiedRecord
	for _, pr := range r.Results {
		if pr.Success {
			out = append(out, pr.Products...)
		}
	}
	return out
}

// Successful returns the results that produced records.
func (r *CollectionReport) Successful() []ProviderResult {
	var out []ProviderResult
	for _, pr := range r.Results {
		if pr.Success {
			out = append(out, pr)
		}
	}
	return out
}

// Failed returns the results that errored. Circuit-skipped providers are not
// failures; see Skipped.
func (r *CollectionReport) Failed() []ProviderResult {
	var out []ProviderResult
	for _, pr := range r.Results {
		if !pr.Success && !pr.Skipped {
			out = append(out, pr)
		}
	}
	return out
}

// SkippedResults returns the providers short-circuited by an open breaker.
func (r *CollectionReport) SkippedResults() []ProviderResult {
	var out []ProviderResult
	for _, pr := range r.Results {
		if pr.Skipped {
			out = append(out, pr)
		}
	}
	return out
}

func buildStats(results []ProviderResult, elapsed time.Duration) Stats {
	s := Stats{
		TotalProviders: len(results),
		TotalTimeMS:    elapsed.Milliseconds(),
	}
	for _, pr := range results {
		switch {
		case pr.Success:
			s.SuccessfulProviders++
			s.TotalProducts += pr.ProductCount()
		case pr.Skipped:
			s.SkippedProviders++
		default:
			s.FailedProviders++
		}
	}
	return s
}
