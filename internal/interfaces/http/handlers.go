package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/peakgear/pricewatch/internal/app"
	"github.com/peakgear/pricewatch/internal/currency"
	"github.com/peakgear/pricewatch/internal/model"
	"github.com/peakgear/pricewatch/internal/net/circuit"
)

// handleCollect runs one collection batch across every enabled provider.
// use_cache=false drops the cached records first; analyze=true additionally
// runs the analysis pipeline when persistence is enabled.
func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	batch := s.services.RunBatch(r.Context(), app.BatchOptions{
		UseCache:     queryBool(r, "use_cache", true),
		SkipAnalysis: !queryBool(r, "analyze", false),
		TriggeredBy:  app.TriggerAPI,
	})
	s.writeJSON(w, http.StatusOK, batch)
}

// handleCollectProvider collects from a single provider. Unknown providers
// get a 404 naming the available ones; a failed or circuit-skipped fetch
// answers 503.
func (s *Server) handleCollectProvider(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["provider"]
	if _, err := s.services.Adapters.Get(slug); err != nil {
		s.writeError(w, r, http.StatusNotFound, err.Error())
		return
	}

	if !queryBool(r, "use_cache", true) {
		s.services.Collector.InvalidateCache(slug)
	}

	result, err := s.services.Collector.CollectSingle(r.Context(), slug)
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, err.Error())
		return
	}
	if !result.Success {
		s.writeError(w, r, http.StatusServiceUnavailable,
			fmt.Sprintf("provider %s failed: %s", slug, result.ErrorMessage))
		return
	}

	s.writeJSON(w, http.StatusOK, ProviderCollectResponse{
		ProviderResult: result,
		Products:       result.Products,
	})
}

// handleProducts lists collected records, optionally filtered by provider,
// category, brand, and a price range in the provider's own currency.
func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var records []model.UnifiedRecord
	if provider := q.Get("provider"); provider != "" {
		if _, err := s.services.Adapters.Get(provider); err != nil {
			s.writeError(w, r, http.StatusNotFound, err.Error())
			return
		}
		if result, err := s.services.Collector.CollectSingle(r.Context(), provider); err == nil && result.Success {
			records = result.Products
		}
	} else {
		records = s.services.Collector.CollectAll(r.Context()).AllRecords()
	}

	filtered, err := filterRecords(records, q)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, ProductsResponse{Total: len(filtered), Products: filtered})
}

// handleStats serves the observability snapshot: per-provider reliability
// with breaker-adjusted weights, raw breaker/budget/limiter stats, and pool
// stats when persistence is on.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	circuits := s.services.Breakers.Stats()

	providers := buildProviderStatuses(s.services.Adapters.Slugs(), func(slug string) float64 {
		return s.services.Weights.GetProviderWeights(slug).Reliability
	}, circuits)

	healthy := 0
	for _, p := range providers {
		if p.CircuitState == circuit.StateClosed.String() {
			healthy++
		}
	}

	s.writeJSON(w, http.StatusOK, StatsResponse{
		Status:          "ok",
		UptimeSeconds:   s.services.Uptime().Seconds(),
		Providers:       providers,
		TotalProviders:  len(providers),
		HealthyCount:    healthy,
		CircuitBreakers: circuits,
		Budgets:         s.services.Budgets.Stats(),
		RateLimits:      s.services.Limiter.Stats(),
		Database:        s.services.DB.Stats(),
	})
}

// handleInvalidateCache drops cached provider records: all providers when no
// provider is named, otherwise just the one.
func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")
	if provider == "" {
		s.services.Collector.InvalidateAll()
		s.writeJSON(w, http.StatusOK, ProvidersInvalidated{
			Success:   true,
			Providers: s.services.Adapters.Slugs(),
		})
		return
	}

	if _, err := s.services.Adapters.Get(provider); err != nil {
		s.writeError(w, r, http.StatusNotFound, err.Error())
		return
	}

	s.services.Collector.InvalidateCache(provider)
	s.writeJSON(w, http.StatusOK, ProvidersInvalidated{
		Success:   true,
		Providers: []string{provider},
	})
}

// handleHealth checks the cache with a write-read probe and pings the
// database when enabled. Always answers 200 with component detail.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{"api": "healthy"}

	s.services.Store.Set("health_check", []byte("ok"), 10*time.Second)
	if v, ok := s.services.Store.Get("health_check"); ok && string(v) == "ok" {
		components["cache"] = "healthy"
	} else {
		components["cache"] = "degraded"
	}

	switch {
	case !s.services.DB.IsEnabled():
		components["database"] = "disabled"
	case s.services.DB.Ping(r.Context()) != nil:
		components["database"] = "unhealthy"
	default:
		components["database"] = "healthy"
	}

	status := "healthy"
	for _, state := range components {
		if state == "unhealthy" || state == "degraded" {
			status = "degraded"
			break
		}
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:        status,
		Components:    components,
		UptimeSeconds: s.services.Uptime().Seconds(),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusNotFound, "the requested endpoint does not exist")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("response encoding failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		RequestID: requestID(r),
		Timestamp: time.Now().UTC(),
	})
}

// filterRecords applies the optional product filters. Records whose raw price
// cannot be parsed are excluded only when a price bound is set.
func filterRecords(records []model.UnifiedRecord, q url.Values) ([]model.UnifiedRecord, error) {
	category := q.Get("category")
	brand := q.Get("brand")

	minPrice, hasMin, err := queryFloat(q, "min_price")
	if err != nil {
		return nil, err
	}
	maxPrice, hasMax, err := queryFloat(q, "max_price")
	if err != nil {
		return nil, err
	}

	filtered := make([]model.UnifiedRecord, 0, len(records))
	for _, rec := range records {
		if category != "" && !strings.EqualFold(rec.Category, category) {
			continue
		}
		if brand != "" && !strings.EqualFold(rec.Brand, brand) {
			continue
		}
		if hasMin || hasMax {
			price, err := currency.ParsePrice(rec.Price)
			if err != nil {
				continue
			}
			if hasMin && price < minPrice {
				continue
			}
			if hasMax && price > maxPrice {
				continue
			}
		}
		filtered = append(filtered, rec)
	}
	return filtered, nil
}

func queryBool(r *http.Request, key string, def bool) bool {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func queryFloat(q url.Values, key string) (float64, bool, error) {
	v := q.Get(key)
	if v == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %q", key, v)
	}
	return f, true, nil
}
