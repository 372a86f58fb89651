package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/peakgear/pricewatch/infra/breakers"
)

// BaseCurrency is the currency all prices are normalized to.
const BaseCurrency = "TRY"

// RateSource fetches exchange rates quoted in the base currency: one unit of
// the keyed currency costs rate[code] TRY.
type RateSource interface {
	Fetch(ctx context.Context) (map[string]float64, error)
}

// HTTPSource pulls rates from an exchange-rate API. The upstream quotes all
// currencies against its own base, so rates are cross-rated through TRY.
type HTTPSource struct {
	http    *http.Client
	url     string
	breaker *breakers.Breaker
}

// NewHTTPSource creates a rate source for the given endpoint. The upstream is
// shared across every batch, so it gets a short timeout and its own breaker.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		http:    &http.Client{Timeout: 3 * time.Second},
		url:     url,
		breaker: breakers.New("exchange-rates"),
	}
}

// Fetch returns TRY-quoted rates. Missing TRY in the payload is an error so
// the caller can fall back to the static table.
func (s *HTTPSource) Fetch(ctx context.Context) (map[string]float64, error) {
	result, err := s.breaker.Execute(func() (any, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]float64), nil
}

func (s *HTTPSource) fetch(ctx context.Context) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange rate fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange rate fetch: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("exchange rate decode: %w", err)
	}

	tryRate, ok := payload.Rates[BaseCurrency]
	if !ok || tryRate <= 0 {
		return nil, fmt.Errorf("exchange rate payload missing %s", BaseCurrency)
	}

	rates := make(map[string]float64, len(payload.Rates))
	for code, rate := range payload.Rates {
		if rate <= 0 {
			continue
		}
		rates[code] = tryRate / rate
	}
	rates[BaseCurrency] = 1.0
	return rates, nil
}

// State reports the upstream breaker state for stats endpoints.
func (s *HTTPSource) State() string {
	return s.breaker.State()
}
