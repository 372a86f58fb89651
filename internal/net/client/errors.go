package client

import (
	"fmt"
)

// ProviderError represents a failed provider fetch with context about which
// layer refused or failed the request.
type ProviderError struct {
	Provider   string `json:"provider"`
	Type       string `json:"type"` // "circuit", "budget", "rate_limit", "transport", "http_error"
	StatusCode int    `json:"status_code,omitempty"`
	Err        error  `json:"-"`
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s %s error (HTTP %d): %v", e.Provider, e.Type, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s %s error: %v", e.Provider, e.Type, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsCircuitOpen returns true if the request was refused by an open breaker.
func (e *ProviderError) IsCircuitOpen() bool {
	return e.Type == "circuit"
}

// IsBudgetExhausted returns true if the provider's daily budget is used up.
func (e *ProviderError) IsBudgetExhausted() bool {
	return e.Type == "budget"
}

// IsRateLimited returns true if the error came from rate limiting, either
// locally or as an HTTP 429 from the provider.
func (e *ProviderError) IsRateLimited() bool {
	return e.Type == "rate_limit" || e.StatusCode == 429
}

// Reason returns a human-readable explanation for reports and logs.
func (e *ProviderError) Reason() string {
	switch e.Type {
	case "circuit":
		return fmt.Sprintf("Service %s temporarily unavailable (circuit breaker open)", e.Provider)
	case "budget":
		return fmt.Sprintf("Daily request budget exhausted for %s", e.Provider)
	case "rate_limit":
		return fmt.Sprintf("Rate limited by %s - too many requests", e.Provider)
	case "http_error":
		return fmt.Sprintf("HTTP error from %s (status %d)", e.Provider, e.StatusCode)
	case "transport":
		return fmt.Sprintf("Network error connecting to %s", e.Provider)
	default:
		return fmt.Sprintf("Error from provider %s", e.Provider)
	}
}
