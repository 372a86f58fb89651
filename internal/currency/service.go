package currency

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/peakgear/pricewatch/data/cache"
)

const (
	ratesCacheKey = "exchange_rates"
	ratesCacheTTL = 5 * time.Minute
)

// Fallback returns the static rate table used when the upstream is down or
// returns a payload without the base currency.
func Fallback() map[string]float64 {
	return map[string]float64{
		"USD":        34.20,
		"EUR":        37.50,
		"GBP":        43.10,
		BaseCurrency: 1.0,
	}
}

// Service resolves exchange rates and converts prices to the base currency.
// Rates are cached for five minutes so a batch across four providers costs at
// most one upstream call.
type Service struct {
	cache  cache.Cache
	source RateSource
	ttl    time.Duration
}

// NewService wires the service to a cache and a rate source.
func NewService(c cache.Cache, source RateSource) *Service {
	return &Service{cache: c, source: source, ttl: ratesCacheTTL}
}

// Rates returns TRY-quoted exchange rates. The result is always usable: on
// any upstream failure the static fallback table is served and cached.
func (s *Service) Rates(ctx context.Context) map[string]float64 {
	if data, ok := s.cache.Get(ratesCacheKey); ok {
		var rates map[string]float64
		if err := json.Unmarshal(data, &rates); err == nil && len(rates) > 0 {
			return rates
		}
		s.cache.Delete(ratesCacheKey)
	}

	rates, err := s.source.Fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("exchange rate fetch failed, using fallback rates")
		rates = Fallback()
	}

	if data, err := json.Marshal(rates); err == nil {
		s.cache.Set(ratesCacheKey, data, s.ttl)
	}
	return rates
}

// ConvertAt converts an amount in the given currency to the base currency
// using a previously fetched rate table. Unknown currencies pass through
// unchanged with a warning, matching how partial provider data is tolerated
// elsewhere.
func (s *Service) ConvertAt(rates map[string]float64, amount float64, code string) float64 {
	if code == BaseCurrency {
		return amount
	}
	rate, ok := rates[code]
	if !ok {
		log.Warn().Str("currency", code).Msg("no exchange rate for currency, amount left unconverted")
		return amount
	}
	return Round2(amount * rate)
}

// Convert fetches current rates and converts in one step.
func (s *Service) Convert(ctx context.Context, amount float64, code string) float64 {
	return s.ConvertAt(s.Rates(ctx), amount, code)
}

// Invalidate drops the cached rate table.
func (s *Service) Invalidate() {
	s.cache.Delete(ratesCacheKey)
}
