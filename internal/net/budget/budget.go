package budget

import (
	"fmt"
	"sync"
	"time"
)

// ExhaustedError is returned when a provider's daily budget is used up.
type ExhaustedError struct {
	Provider string
	Used     int64
	Limit    int64
	ResetAt  time.Time
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("daily budget exhausted for %s: %d/%d requests used, resets at %s",
		e.Provider, e.Used, e.Limit, e.ResetAt.Format("15:04 UTC"))
}

// WarningError is returned when usage crosses the warning threshold. The
// request itself is still allowed.
type WarningError struct {
	Provider  string
	Used      int64
	Limit     int64
	Threshold float64
}

func (e *WarningError) Error() string {
	utilization := float64(e.Used) / float64(e.Limit) * 100
	return fmt.Sprintf("budget warning for %s: %.1f%% used (%d/%d), threshold %.1f%%",
		e.Provider, utilization, e.Used, e.Limit, e.Threshold*100)
}

// Tracker tracks daily request usage for a single provider. A zero limit
// disables tracking entirely.
type Tracker struct {
	mu            sync.Mutex
	provider      string
	limit         int64
	used          int64
	resetHour     int     // UTC hour the window resets (0-23)
	warnThreshold float64 // Warning threshold (0.0-1.0)
	lastReset     time.Time
}

// NewTracker creates a budget tracker for the named provider.
func NewTracker(provider string, limit int64, resetHour int, warnThreshold float64) *Tracker {
	if resetHour < 0 || resetHour > 23 {
		resetHour = 0
	}
	if warnThreshold <= 0 || warnThreshold > 1 {
		warnThreshold = 0.8
	}

	return &Tracker{
		provider:      provider,
		limit:         limit,
		resetHour:     resetHour,
		warnThreshold: warnThreshold,
		lastReset:     lastResetTime(time.Now().UTC(), resetHour),
	}
}

// lastResetTime calculates the most recent reset boundary before now.
func lastResetTime(now time.Time, resetHour int) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), resetHour, 0, 0, 0, time.UTC)
	if now.Hour() >= resetHour {
		return today
	}
	return today.AddDate(0, 0, -1)
}

// resetIfNeeded rolls the window forward once a day has passed. Callers must
// hold the lock.
func (t *Tracker) resetIfNeeded(now time.Time) {
	if now.After(t.lastReset.Add(24 * time.Hour)) {
		t.used = 0
		t.lastReset = lastResetTime(now, t.resetHour)
	}
}

// Take consumes one request from the budget. Past the cap it returns an
// ExhaustedError without consuming; past the warning threshold it consumes
// and returns a WarningError.
func (t *Tracker) Take() error {
	if t == nil || t.limit <= 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now().UTC()
	t.resetIfNeeded(now)

	if t.used >= t.limit {
		return &ExhaustedError{
			Provider: t.provider,
			Used:     t.used,
			Limit:    t.limit,
			ResetAt:  t.lastReset.Add(24 * time.Hour),
		}
	}

	t.used++

	if float64(t.used)/float64(t.limit) >= t.warnThreshold {
		return &WarningError{
			Provider:  t.provider,
			Used:      t.used,
			Limit:     t.limit,
			Threshold: t.warnThreshold,
		}
	}

	return nil
}

// Stats returns a snapshot of the tracker.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetIfNeeded(time.Now().UTC())

	utilization := float64(0)
	if t.limit > 0 {
		utilization = float64(t.used) / float64(t.limit)
	}

	return Stats{
		Provider:        t.provider,
		Limit:           t.limit,
		Used:            t.used,
		Remaining:       t.limit - t.used,
		UtilizationRate: utilization,
		WarnThreshold:   t.warnThreshold,
		ResetHour:       t.resetHour,
		LastReset:       t.lastReset,
		NextReset:       t.lastReset.Add(24 * time.Hour),
		IsWarning:       t.limit > 0 && utilization >= t.warnThreshold,
		IsExhausted:     t.limit > 0 && t.used >= t.limit,
	}
}

// Reset manually clears the usage counter.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.used = 0
	t.lastReset = time.Now().UTC()
}

// Stats represents budget tracker statistics.
type Stats struct {
	Provider        string    `json:"provider"`
	Limit           int64     `json:"limit"`
	Used            int64     `json:"used"`
	Remaining       int64     `json:"remaining"`
	UtilizationRate float64   `json:"utilization_rate"`
	WarnThreshold   float64   `json:"warn_threshold"`
	ResetHour       int       `json:"reset_hour"`
	LastReset       time.Time `json:"last_reset"`
	NextReset       time.Time `json:"next_reset"`
	IsWarning       bool      `json:"is_warning"`
	IsExhausted     bool      `json:"is_exhausted"`
}

// TimeToReset returns the duration until the next budget reset.
func (s *Stats) TimeToReset() time.Duration {
	return time.Until(s.NextReset)
}

// Manager holds budget trackers for multiple providers. Providers without a
// tracker are unmetered.
type Manager struct {
	mu       sync.RWMutex
	trackers map[string]*Tracker
}

// NewManager creates an empty budget registry.
func NewManager() *Manager {
	return &Manager{
		trackers: make(map[string]*Tracker),
	}
}

// AddProvider registers a daily budget for the provider. A zero limit removes
// any metering.
func (m *Manager) AddProvider(provider string, limit int64, resetHour int, warnThreshold float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		delete(m.trackers, provider)
		return
	}
	m.trackers[provider] = NewTracker(provider, limit, resetHour, warnThreshold)
}

// Take consumes one request from the provider's budget, if one is configured.
func (m *Manager) Take(provider string) error {
	m.mu.RLock()
	tracker, exists := m.trackers[provider]
	m.mu.RUnlock()

	if !exists {
		return nil
	}
	return tracker.Take()
}

// Stats returns snapshots for all metered providers.
func (m *Manager) Stats() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]Stats, len(m.trackers))
	for provider, tracker := range m.trackers {
		stats[provider] = tracker.Stats()
	}
	return stats
}

// Exhausted lists providers whose budgets are used up.
func (m *Manager) Exhausted() []string {
	var exhausted []string
	for provider, stat := range m.Stats() {
		if stat.IsExhausted {
			exhausted = append(exhausted, provider)
		}
	}
	return exhausted
}

// Reset clears all budget counters.
func (m *Manager) Reset() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, tracker := range m.trackers {
		tracker.Reset()
	}
}
