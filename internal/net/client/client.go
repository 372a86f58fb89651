package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/peakgear/pricewatch/internal/net/budget"
	"github.com/peakgear/pricewatch/internal/net/circuit"
	"github.com/peakgear/pricewatch/internal/net/ratelimit"
)

// BackoffStrategy selects how retry delays grow between attempts.
type BackoffStrategy string

const (
	BackoffExponential BackoffStrategy = "exponential"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffFixed       BackoffStrategy = "fixed"
)

// ParseStrategy maps a config string to a backoff strategy. Unknown values
// fall back to exponential.
func ParseStrategy(s string) BackoffStrategy {
	switch BackoffStrategy(s) {
	case BackoffLinear:
		return BackoffLinear
	case BackoffFixed:
		return BackoffFixed
	default:
		return BackoffExponential
	}
}

// RetryPolicy describes how failed requests are retried.
type RetryPolicy struct {
	MaxRetries        int
	Strategy          BackoffStrategy
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	RetryableStatuses []int
}

// DefaultRetryPolicy returns the standard policy for provider fetches.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        3,
		Strategy:          BackoffExponential,
		BaseDelay:         time.Second,
		MaxDelay:          60 * time.Second,
		RetryableStatuses: []int{429, 500, 502, 503, 504},
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxRetries <= 0 {
		p.MaxRetries = d.MaxRetries
	}
	if p.Strategy == "" {
		p.Strategy = d.Strategy
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.RetryableStatuses == nil {
		p.RetryableStatuses = d.RetryableStatuses
	}
	return p
}

// Delay returns the backoff before the retry following the given attempt,
// counted from zero. Delays are capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	var d time.Duration
	switch p.Strategy {
	case BackoffLinear:
		d = p.BaseDelay * time.Duration(attempt+1)
	case BackoffFixed:
		d = p.BaseDelay
	default:
		if attempt > 16 {
			return p.MaxDelay
		}
		d = p.BaseDelay * time.Duration(1<<uint(attempt))
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// IsRetryable reports whether the HTTP status is worth retrying.
func (p RetryPolicy) IsRetryable(status int) bool {
	for _, s := range p.RetryableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Config configures the resilient HTTP client.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	Policy    RetryPolicy
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "PriceWatch/1.2 (price aggregation; contact ops@peakgear.io)"
	}
	c.Policy = c.Policy.withDefaults()
	return c
}

// Client is an HTTP client for provider fetches with retries, per-provider
// circuit breaking, rate limiting and daily budgets layered in. Requests are
// gated by the breaker first, so a tripped provider costs nothing.
type Client struct {
	http      *http.Client
	policy    RetryPolicy
	userAgent string
	breakers  *circuit.Manager
	limiter   *ratelimit.Limiter
	budgets   *budget.Manager
}

// New creates a resilient client. The breaker manager, limiter and budget
// manager may be nil, which disables the corresponding layer.
func New(cfg Config, breakers *circuit.Manager, limiter *ratelimit.Limiter, budgets *budget.Manager) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		policy:    cfg.Policy,
		userAgent: cfg.UserAgent,
		breakers:  breakers,
		limiter:   limiter,
		budgets:   budgets,
	}
}

// Get fetches the URL on behalf of the named provider and returns the raw
// response body. Retryable statuses, timeouts and connection errors are
// retried per the policy; the breaker records one failure per exhausted or
// non-retryable request and none when the context is cancelled.
func (c *Client) Get(ctx context.Context, provider, url string) ([]byte, error) {
	var breaker *circuit.Breaker
	if c.breakers != nil {
		breaker = c.breakers.GetBreaker(provider)
		if !breaker.Allow() {
			return nil, &ProviderError{Provider: provider, Type: "circuit", Err: circuit.ErrCircuitOpen}
		}
	}

	if c.budgets != nil {
		if err := c.budgets.Take(provider); err != nil {
			var exhausted *budget.ExhaustedError
			if errors.As(err, &exhausted) {
				return nil, &ProviderError{Provider: provider, Type: "budget", Err: err}
			}
			log.Warn().Err(err).Str("provider", provider).Msg("provider budget warning")
		}
	}

	start := time.Now()
	var lastErr error

	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, provider); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, &ProviderError{Provider: provider, Type: "rate_limit", Err: err}
			}
		}

		status, header, body, err := c.do(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				// Cancellation is the caller's doing, not the provider's.
				return nil, ctx.Err()
			}
			lastErr = &ProviderError{Provider: provider, Type: "transport", Err: err}
			if attempt < c.policy.MaxRetries {
				log.Warn().Err(err).
					Str("provider", provider).
					Int("attempt", attempt+1).
					Int("max_retries", c.policy.MaxRetries).
					Msg("provider request failed, retrying")
				if err := c.sleep(ctx, c.policy.Delay(attempt)); err != nil {
					return nil, err
				}
			}
			continue
		}

		if status >= 200 && status < 300 {
			if breaker != nil {
				breaker.RecordSuccess()
			}
			log.Debug().
				Str("provider", provider).
				Int("status", status).
				Dur("duration", time.Since(start)).
				Int("attempts", attempt+1).
				Msg("provider fetch complete")
			return body, nil
		}

		lastErr = &ProviderError{
			Provider:   provider,
			Type:       "http_error",
			StatusCode: status,
			Err:        fmt.Errorf("unexpected status %d", status),
		}

		if !c.policy.IsRetryable(status) {
			if breaker != nil {
				breaker.RecordFailure()
			}
			return nil, lastErr
		}

		if attempt < c.policy.MaxRetries {
			delay := c.policy.Delay(attempt)
			if status == http.StatusTooManyRequests {
				if ra, ok := retryAfter(header); ok {
					delay = ra
				}
			}
			log.Warn().
				Str("provider", provider).
				Int("status", status).
				Int("attempt", attempt+1).
				Dur("backoff", delay).
				Msg("provider returned retryable status")
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	if breaker != nil {
		breaker.RecordFailure()
	}
	return nil, lastErr
}

// do executes a single GET and reads the full body.
func (c *Client) do(ctx context.Context, url string) (int, http.Header, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, err
	}
	return resp.StatusCode, resp.Header, body, nil
}

// sleep waits for the delay or until the context is cancelled.
func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(header http.Header) (time.Duration, bool) {
	value := header.Get("Retry-After")
	if value == "" {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

// GetStats returns the state of all middleware layers for reporting.
func (c *Client) GetStats() ProviderStats {
	stats := ProviderStats{}
	if c.breakers != nil {
		stats.Circuit = c.breakers.Stats()
	}
	if c.limiter != nil {
		stats.RateLimit = c.limiter.Stats()
	}
	if c.budgets != nil {
		stats.Budget = c.budgets.Stats()
	}
	return stats
}

// ProviderStats aggregates middleware state across providers.
type ProviderStats struct {
	Circuit   map[string]circuit.Stats          `json:"circuit"`
	RateLimit map[string]ratelimit.LimiterStats `json:"rate_limit"`
	Budget    map[string]budget.Stats           `json:"budget"`
}
