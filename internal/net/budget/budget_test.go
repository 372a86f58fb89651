package budget

import (
	"strings"
	"testing"
	"time"
)

func TestTracker_Take(t *testing.T) {
	tracker := NewTracker("sport-direct", 10, 0, 0.8)

	// Consume under warning threshold
	for i := 0; i < 7; i++ {
		if err := tracker.Take(); err != nil {
			t.Errorf("Should consume request %d: %v", i, err)
		}
	}

	// Should warn at 80%
	err := tracker.Take() // 8th request = 80%
	if err == nil {
		t.Error("Should warn at 80% threshold")
	}
	if _, isWarning := err.(*WarningError); !isWarning {
		t.Errorf("Should return WarningError, got %T: %v", err, err)
	}

	// Warnings do not block; consume the rest
	tracker.Take() // 9th
	tracker.Take() // 10th (at limit)

	// Should block further consumption
	err = tracker.Take()
	if err == nil {
		t.Error("Should block consumption over limit")
	}
	if _, isExhausted := err.(*ExhaustedError); !isExhausted {
		t.Errorf("Should return ExhaustedError, got %T: %v", err, err)
	}

	// Usage count should not increment when blocked
	stats := tracker.Stats()
	if stats.Used != 10 {
		t.Errorf("Usage should be 10 after blocked attempt, got %d", stats.Used)
	}
}

func TestTracker_ZeroLimitUnmetered(t *testing.T) {
	tracker := NewTracker("outdoor-pro", 0, 0, 0.8)

	for i := 0; i < 1000; i++ {
		if err := tracker.Take(); err != nil {
			t.Fatalf("Zero limit should never block: %v", err)
		}
	}
}

func TestTracker_Stats(t *testing.T) {
	tracker := NewTracker("dag-spor", 100, 12, 0.75) // Reset at noon

	for i := 0; i < 30; i++ {
		tracker.Take()
	}

	stats := tracker.Stats()

	if stats.Provider != "dag-spor" {
		t.Errorf("Provider should be dag-spor, got %s", stats.Provider)
	}

	if stats.Limit != 100 {
		t.Errorf("Limit should be 100, got %d", stats.Limit)
	}

	if stats.Used != 30 {
		t.Errorf("Used should be 30, got %d", stats.Used)
	}

	if stats.Remaining != 70 {
		t.Errorf("Remaining should be 70, got %d", stats.Remaining)
	}

	expectedUtilization := 0.30 // 30/100
	if abs64(stats.UtilizationRate-expectedUtilization) > 0.01 {
		t.Errorf("Utilization should be %.2f, got %.2f", expectedUtilization, stats.UtilizationRate)
	}

	if stats.WarnThreshold != 0.75 {
		t.Errorf("Warn threshold should be 0.75, got %.2f", stats.WarnThreshold)
	}

	if stats.ResetHour != 12 {
		t.Errorf("Reset hour should be 12, got %d", stats.ResetHour)
	}

	if stats.IsWarning {
		t.Error("Should not be warning at 30% utilization")
	}

	if stats.IsExhausted {
		t.Error("Should not be exhausted at 30% utilization")
	}

	if stats.TimeToReset() <= 0 {
		t.Error("Time to reset should be positive")
	}
}

func TestTracker_Reset(t *testing.T) {
	tracker := NewTracker("alpine-gear", 50, 0, 0.8)

	// Use up budget
	for i := 0; i < 50; i++ {
		tracker.Take()
	}

	stats := tracker.Stats()
	if !stats.IsExhausted {
		t.Error("Should be exhausted after consuming full budget")
	}

	tracker.Reset()

	if err := tracker.Take(); err != nil {
		t.Errorf("Should allow requests after reset: %v", err)
	}

	stats = tracker.Stats()
	if stats.Used != 1 {
		t.Errorf("Used should be 1 after reset and one take, got %d", stats.Used)
	}
}

func TestTracker_AutoReset(t *testing.T) {
	now := time.Now().UTC()
	tracker := NewTracker("sport-direct", 100, now.Hour(), 0.8)

	// Use some budget, then backdate the window past a full day
	for i := 0; i < 50; i++ {
		tracker.Take()
	}

	tracker.mu.Lock()
	tracker.lastReset = now.Add(-25 * time.Hour)
	tracker.mu.Unlock()

	// Next take rolls the window and starts counting fresh
	if err := tracker.Take(); err != nil {
		t.Errorf("Should allow after auto-reset: %v", err)
	}

	stats := tracker.Stats()
	if stats.Used >= 50 {
		t.Errorf("Usage should be reset, got %d", stats.Used)
	}
}

func TestManager_Take(t *testing.T) {
	manager := NewManager()

	// No tracker configured - unmetered
	if err := manager.Take("unknown-provider"); err != nil {
		t.Errorf("Should allow for unmetered provider: %v", err)
	}

	manager.AddProvider("sport-direct", 5, 0, 0.8)

	for i := 0; i < 5; i++ {
		manager.Take("sport-direct")
	}

	err := manager.Take("sport-direct")
	if err == nil {
		t.Error("Should block consumption at limit")
	}
	if _, isExhausted := err.(*ExhaustedError); !isExhausted {
		t.Errorf("Should return ExhaustedError, got %T: %v", err, err)
	}
}

func TestManager_ZeroLimitRemovesTracking(t *testing.T) {
	manager := NewManager()

	manager.AddProvider("sport-direct", 2, 0, 0.8)
	manager.Take("sport-direct")
	manager.Take("sport-direct")

	if err := manager.Take("sport-direct"); err == nil {
		t.Fatal("Should be exhausted before removing the budget")
	}

	// Reconfiguring with zero limit removes metering
	manager.AddProvider("sport-direct", 0, 0, 0.8)

	if err := manager.Take("sport-direct"); err != nil {
		t.Errorf("Should be unmetered after zero-limit reconfigure: %v", err)
	}
}

func TestManager_Stats(t *testing.T) {
	manager := NewManager()

	manager.AddProvider("sport-direct", 100, 0, 0.8)
	manager.AddProvider("outdoor-pro", 200, 6, 0.9)

	for i := 0; i < 50; i++ {
		manager.Take("sport-direct")
	}
	for i := 0; i < 30; i++ {
		manager.Take("outdoor-pro")
	}

	allStats := manager.Stats()

	if len(allStats) != 2 {
		t.Errorf("Should have stats for 2 providers, got %d", len(allStats))
	}

	sportStats, exists := allStats["sport-direct"]
	if !exists {
		t.Fatal("Should have stats for sport-direct")
	}
	if sportStats.Used != 50 {
		t.Errorf("sport-direct should have used 50, got %d", sportStats.Used)
	}

	outdoorStats, exists := allStats["outdoor-pro"]
	if !exists {
		t.Fatal("Should have stats for outdoor-pro")
	}
	if outdoorStats.Used != 30 {
		t.Errorf("outdoor-pro should have used 30, got %d", outdoorStats.Used)
	}
}

func TestManager_Exhausted(t *testing.T) {
	manager := NewManager()

	manager.AddProvider("normal", 100, 0, 0.8)
	manager.AddProvider("drained", 50, 0, 0.8)

	for i := 0; i < 30; i++ {
		manager.Take("normal")
	}
	for i := 0; i < 50; i++ {
		manager.Take("drained")
	}

	exhausted := manager.Exhausted()

	if len(exhausted) != 1 {
		t.Fatalf("Should have 1 exhausted provider, got %d", len(exhausted))
	}

	if exhausted[0] != "drained" {
		t.Errorf("Exhausted list should contain drained, got %v", exhausted)
	}
}

func TestExhaustedError(t *testing.T) {
	err := &ExhaustedError{
		Provider: "sport-direct",
		Used:     100,
		Limit:    100,
		ResetAt:  time.Now().Add(2 * time.Hour),
	}

	msg := err.Error()
	if !strings.Contains(msg, "sport-direct") {
		t.Errorf("Error message should contain provider name: %s", msg)
	}
	if !strings.Contains(msg, "100/100") {
		t.Errorf("Error message should contain usage: %s", msg)
	}
}

func TestWarningError(t *testing.T) {
	err := &WarningError{
		Provider:  "sport-direct",
		Used:      80,
		Limit:     100,
		Threshold: 0.8,
	}

	msg := err.Error()
	if !strings.Contains(msg, "sport-direct") {
		t.Errorf("Error message should contain provider name: %s", msg)
	}
	if !strings.Contains(msg, "80.0%") {
		t.Errorf("Error message should contain utilization percentage: %s", msg)
	}
}

// Helper for floating point comparison
func abs64(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
