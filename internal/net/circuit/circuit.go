package circuit

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrCircuitOpen is returned when the circuit breaker refuses a request.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state
type State int

const (
	StateClosed   State = iota // Circuit is closed, requests allowed
	StateOpen                  // Circuit is open, requests blocked
	StateHalfOpen              // Circuit is half-open, limited probes allowed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config represents circuit breaker configuration
type Config struct {
	FailureThreshold int           // Consecutive failures to open the circuit
	SuccessThreshold int           // Successes in half-open to close the circuit
	Timeout          time.Duration // Cool-down in open before probing
	HalfOpenMaxCalls int           // Max probes admitted per half-open window
}

// DefaultConfig returns the default breaker thresholds.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          60 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = d.HalfOpenMaxCalls
	}
	return c
}

// Breaker is a three-state failure gate in front of one provider. Allow,
// RecordSuccess and RecordFailure are the only operations callers need; the
// open→half-open transition happens lazily inside Allow once the cool-down
// has elapsed.
type Breaker struct {
	mu              sync.RWMutex
	name            string
	config          Config
	state           State
	failures        int // Consecutive failure count
	successes       int // Success count while half-open
	halfOpenCalls   int // Probes admitted in the current half-open window
	lastFailureTime time.Time
	lastStateChange time.Time
	totalRequests   int64
	totalSuccesses  int64
	totalFailures   int64
}

// NewBreaker creates a circuit breaker for the named provider. Zero config
// fields fall back to defaults.
func NewBreaker(name string, config Config) *Breaker {
	return &Breaker{
		name:            name,
		config:          config.withDefaults(),
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// Allow reports whether a request may proceed. In half-open it admits at most
// HalfOpenMaxCalls probes, counting each admission.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && !b.lastFailureTime.IsZero() &&
		time.Since(b.lastFailureTime) >= b.config.Timeout {
		b.setState(StateHalfOpen)
	}

	switch b.state {
	case StateClosed:
		b.totalRequests++
		return true
	case StateHalfOpen:
		if b.halfOpenCalls < b.config.HalfOpenMaxCalls {
			b.halfOpenCalls++
			b.totalRequests++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess handles successful request completion.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalSuccesses++

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.setState(StateClosed)
		}
	}
}

// RecordFailure handles failed request completion. A single failure while
// half-open reopens the circuit.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalFailures++
	b.lastFailureTime = time.Now()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.setState(StateOpen)
		}
	case StateHalfOpen:
		b.setState(StateOpen)
	}
}

// setState changes state and resets the counters the new state starts from.
// Callers must hold the lock.
func (b *Breaker) setState(state State) {
	if b.state == state {
		return
	}
	old := b.state
	b.state = state
	b.lastStateChange = time.Now()

	switch state {
	case StateClosed:
		b.failures = 0
		b.successes = 0
		b.halfOpenCalls = 0
	case StateHalfOpen:
		b.successes = 0
		b.halfOpenCalls = 0
	}

	log.Info().
		Str("breaker", b.name).
		Str("from", old.String()).
		Str("to", state.String()).
		Msg("circuit breaker state change")
}

// State returns the last observed state. Transitions happen on Allow.
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Name returns the provider name this breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// Stats returns a snapshot of the breaker counters.
func (b *Breaker) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	successRate := float64(0)
	if b.totalRequests > 0 {
		successRate = float64(b.totalSuccesses) / float64(b.totalRequests)
	}

	return Stats{
		Name:            b.name,
		State:           b.state.String(),
		FailureCount:    b.failures,
		SuccessCount:    b.successes,
		HalfOpenCalls:   b.halfOpenCalls,
		LastFailureTime: b.lastFailureTime,
		LastStateChange: b.lastStateChange,
		TotalRequests:   b.totalRequests,
		TotalSuccesses:  b.totalSuccesses,
		TotalFailures:   b.totalFailures,
		SuccessRate:     successRate,
	}
}

// Reset returns the breaker to its initial closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.halfOpenCalls = 0
	b.totalRequests = 0
	b.totalSuccesses = 0
	b.totalFailures = 0
	b.lastStateChange = time.Now()
	b.lastFailureTime = time.Time{}
}

// ForceOpen forces the breaker open.
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastFailureTime = time.Now()
	b.setState(StateOpen)
}

// ForceClosed forces the breaker closed.
func (b *Breaker) ForceClosed() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setState(StateClosed)
}

// Stats represents a circuit breaker snapshot.
type Stats struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	FailureCount    int       `json:"failure_count"`
	SuccessCount    int       `json:"success_count"`
	HalfOpenCalls   int       `json:"half_open_calls"`
	LastFailureTime time.Time `json:"last_failure_time,omitempty"`
	LastStateChange time.Time `json:"last_state_change"`
	TotalRequests   int64     `json:"total_requests"`
	TotalSuccesses  int64     `json:"total_successes"`
	TotalFailures   int64     `json:"total_failures"`
	SuccessRate     float64   `json:"success_rate"`
}

// IsHealthy returns true if the breaker indicates a healthy provider.
func (s *Stats) IsHealthy() bool {
	return s.State == StateClosed.String() && (s.TotalRequests == 0 || s.SuccessRate >= 0.9)
}

// Manager holds one breaker per provider.
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewManager creates an empty breaker registry.
func NewManager() *Manager {
	return &Manager{
		breakers: make(map[string]*Breaker),
	}
}

// AddProvider registers a breaker for the provider, replacing any existing one.
func (m *Manager) AddProvider(name string, config Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.breakers[name] = NewBreaker(name, config)
}

// GetBreaker returns the breaker for a provider, creating one with default
// thresholds on first use.
func (m *Manager) GetBreaker(provider string) *Breaker {
	m.mu.RLock()
	b, ok := m.breakers[provider]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[provider]; ok {
		return b
	}
	b = NewBreaker(provider, DefaultConfig())
	m.breakers[provider] = b
	return b
}

// Stats returns snapshots for all registered breakers.
func (m *Manager) Stats() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]Stats, len(m.breakers))
	for provider, breaker := range m.breakers {
		stats[provider] = breaker.Stats()
	}
	return stats
}

// IsHealthy returns true if every registered breaker is healthy.
func (m *Manager) IsHealthy() bool {
	for _, stat := range m.Stats() {
		if !stat.IsHealthy() {
			return false
		}
	}
	return true
}

// Reset resets every registered breaker.
func (m *Manager) Reset() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, breaker := range m.breakers {
		breaker.Reset()
	}
}

// UnhealthyProviders lists providers whose breakers are not healthy.
func (m *Manager) UnhealthyProviders() []string {
	var unhealthy []string
	for provider, stat := range m.Stats() {
		if !stat.IsHealthy() {
			unhealthy = append(unhealthy, provider)
		}
	}
	return unhealthy
}
