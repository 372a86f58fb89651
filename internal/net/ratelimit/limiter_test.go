package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiter_Allow(t *testing.T) {
	limiter := NewLimiter(2.0, 2) // 2 RPS, burst of 2

	// Should allow first 2 requests immediately (burst)
	if !limiter.Allow("sport-direct") {
		t.Error("First request should be allowed")
	}
	if !limiter.Allow("sport-direct") {
		t.Error("Second request should be allowed")
	}

	// Third request should be blocked (no tokens available)
	if limiter.Allow("sport-direct") {
		t.Error("Third request should be blocked")
	}
}

func TestLimiter_MultipleProviders(t *testing.T) {
	limiter := NewLimiter(1.0, 1) // 1 RPS, burst of 1

	// Each provider should have independent rate limiting
	if !limiter.Allow("sport-direct") {
		t.Error("First request to sport-direct should be allowed")
	}
	if !limiter.Allow("outdoor-pro") {
		t.Error("First request to outdoor-pro should be allowed")
	}

	// Second requests should be blocked for both
	if limiter.Allow("sport-direct") {
		t.Error("Second request to sport-direct should be blocked")
	}
	if limiter.Allow("outdoor-pro") {
		t.Error("Second request to outdoor-pro should be blocked")
	}
}

func TestLimiter_SetProviderRate(t *testing.T) {
	limiter := NewLimiter(1.0, 1)

	// Give one provider a larger burst than the default
	limiter.SetProviderRate("alpine-gear", 5.0, 3)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("alpine-gear") {
			t.Errorf("Request %d within custom burst should be allowed", i+1)
		}
	}
	if limiter.Allow("alpine-gear") {
		t.Error("Request beyond custom burst should be blocked")
	}

	// Other providers still use the default
	if !limiter.Allow("dag-spor") {
		t.Error("First request with default rate should be allowed")
	}
	if limiter.Allow("dag-spor") {
		t.Error("Second request with default rate should be blocked")
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(10.0, 1) // 10 RPS, burst of 1

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// First request should pass immediately
	start := time.Now()
	err := limiter.Wait(ctx, "sport-direct")
	elapsed := time.Since(start)

	if err != nil {
		t.Errorf("Wait should not error on first request: %v", err)
	}
	if elapsed > 10*time.Millisecond {
		t.Errorf("First request should be immediate, took %v", elapsed)
	}

	// Second request should wait approximately 100ms (1/10 second for 10 RPS)
	start = time.Now()
	err = limiter.Wait(ctx, "sport-direct")
	elapsed = time.Since(start)

	if err != nil {
		t.Errorf("Wait should not error: %v", err)
	}
	if elapsed < 50*time.Millisecond || elapsed > 150*time.Millisecond {
		t.Errorf("Second request should wait ~100ms, took %v", elapsed)
	}
}

func TestLimiter_WaitTimeout(t *testing.T) {
	limiter := NewLimiter(0.1, 1) // Very slow: 0.1 RPS (10 second delay)

	// Use up the burst
	limiter.Allow("sport-direct")

	// Context with short timeout
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := limiter.Wait(ctx, "sport-direct")
	elapsed := time.Since(start)

	if err == nil {
		t.Error("Wait should timeout with short context")
	}
	if elapsed > 150*time.Millisecond {
		t.Errorf("Wait should timeout quickly, took %v", elapsed)
	}
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	limiter := NewLimiter(100.0, 10) // 100 RPS, burst of 10
	provider := "sport-direct"

	const numGoroutines = 50
	const requestsPerGoroutine = 5

	var allowed, blocked int64
	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < requestsPerGoroutine; j++ {
				if limiter.Allow(provider) {
					atomic.AddInt64(&allowed, 1)
				} else {
					atomic.AddInt64(&blocked, 1)
				}
			}
		}()
	}

	wg.Wait()

	totalRequests := allowed + blocked
	expectedTotal := int64(numGoroutines * requestsPerGoroutine)

	if totalRequests != expectedTotal {
		t.Errorf("Total requests %d != expected %d", totalRequests, expectedTotal)
	}

	// Should allow some requests (at least the burst amount)
	if allowed < 10 {
		t.Errorf("Should allow at least burst amount, allowed %d", allowed)
	}

	// Should block some requests (more than burst available)
	if blocked == 0 {
		t.Errorf("Should block some requests with this load, blocked %d", blocked)
	}
}

func TestLimiter_Stats(t *testing.T) {
	limiter := NewLimiter(5.0, 10)
	provider := "outdoor-pro"

	// Use some tokens
	limiter.Allow(provider)
	limiter.Allow(provider)

	stats := limiter.Stats()
	providerStats, exists := stats[provider]

	if !exists {
		t.Fatal("Stats should include the provider")
	}

	if providerStats.Provider != provider {
		t.Errorf("Stats should be for %s, got %s", provider, providerStats.Provider)
	}

	if providerStats.RPS != 5.0 {
		t.Errorf("RPS should be 5.0, got %f", providerStats.RPS)
	}

	if providerStats.Burst != 10 {
		t.Errorf("Burst should be 10, got %d", providerStats.Burst)
	}

	// Tokens available should be less than burst after using some
	if providerStats.TokensAvailable >= 10 {
		t.Errorf("Tokens available should be < 10 after usage, got %f", providerStats.TokensAvailable)
	}
}

func TestLimiter_SetRPS(t *testing.T) {
	limiter := NewLimiter(1.0, 2)
	provider := "dag-spor"

	// Use up initial tokens
	limiter.Allow(provider)
	limiter.Allow(provider)

	// Should be throttled at 1 RPS
	if limiter.Allow(provider) {
		t.Error("Should be throttled at 1 RPS")
	}

	// Increase to 10 RPS - this also increases the bucket size effectively
	limiter.SetRPS(10.0)

	// Wait briefly for tokens to accumulate at new rate
	time.Sleep(150 * time.Millisecond)

	// Should now allow more requests
	if !limiter.Allow(provider) {
		t.Error("Should allow requests after increasing RPS")
	}
}

func TestLimiter_Reset(t *testing.T) {
	limiter := NewLimiter(1.0, 1)
	provider := "alpine-gear"

	// Use up tokens
	limiter.Allow(provider)

	// Should be throttled
	if limiter.Allow(provider) {
		t.Error("Should be throttled before reset")
	}

	// Reset should clear all limiters
	limiter.Reset()

	// Should allow requests again
	if !limiter.Allow(provider) {
		t.Error("Should allow requests after reset")
	}
}
