// Package scheduler triggers collection batches on a fixed interval. Each
// tick runs one batch through the service tree; an in-flight guard skips
// ticks that fire while the previous batch is still running.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/peakgear/pricewatch/internal/app"
)

// DefaultInterval is used when the configured interval is missing or invalid.
const DefaultInterval = 30 * time.Second

// BatchRunner runs one collection batch. *app.Services satisfies it.
type BatchRunner interface {
	RunBatch(ctx context.Context, opts app.BatchOptions) *app.BatchResult
}

// Config holds scheduler settings.
type Config struct {
	Interval   time.Duration
	RunOnStart bool
}

// JobResult records one scheduled batch execution.
type JobResult struct {
	BatchID   uuid.UUID     `json:"batch_id"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Records   int           `json:"records"`
	Providers int           `json:"providers"`
	Committed bool          `json:"committed"`
}

// Status is a snapshot of the scheduler state.
type Status struct {
	Running  bool          `json:"running"`
	InFlight bool          `json:"in_flight"`
	Interval time.Duration `json:"interval"`
	Runs     int64         `json:"runs"`
	Skips    int64         `json:"skips"`
	LastRun  time.Time     `json:"last_run"`
	NextRun  time.Time     `json:"next_run"`
	Uptime   time.Duration `json:"uptime"`
	Last     *JobResult    `json:"last_result,omitempty"`
}

// Scheduler runs collection batches on a fixed interval.
type Scheduler struct {
	runner BatchRunner
	config Config

	mu        sync.Mutex
	running   bool
	inFlight  bool
	runs      int64
	skips     int64
	startTime time.Time
	lastRun   time.Time
	nextRun   time.Time
	last      *JobResult
}

// New creates a scheduler over the given batch runner.
func New(runner BatchRunner, config Config) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	return &Scheduler{
		runner: runner,
		config: config,
	}
}

// Start runs the ticker loop until the context is cancelled. Scheduled
// batches always fetch fresh provider data; the collector cache stays warm
// for API readers between ticks.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.startTime = time.Now()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	log.Info().
		Dur("interval", s.config.Interval).
		Bool("run_on_start", s.config.RunOnStart).
		Msg("Scheduler starting")

	if s.config.RunOnStart {
		s.RunNow(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		s.mu.Lock()
		s.nextRun = time.Now().Add(s.config.Interval)
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			log.Info().Msg("Scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			go s.RunNow(ctx)
		}
	}
}

// RunNow executes one batch immediately, honoring the in-flight guard.
// Returns nil when a previous batch is still running.
func (s *Scheduler) RunNow(ctx context.Context) *JobResult {
	if !s.begin() {
		log.Warn().Msg("Previous batch still running, skipping tick")
		return nil
	}
	defer s.end()

	start := time.Now()
	batch := s.runner.RunBatch(ctx, app.BatchOptions{
		UseCache:    false,
		TriggeredBy: app.TriggerScheduler,
	})
	end := time.Now()

	result := &JobResult{
		BatchID:   batch.BatchID,
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
		Success:   !batch.Failed(),
		Records:   batch.RecordCount,
		Committed: batch.Committed,
	}
	if len(batch.Errors) > 0 {
		result.Error = strings.Join(batch.Errors, "; ")
	}
	if batch.Report != nil {
		result.Providers = batch.Report.Stats.SuccessfulProviders
	}

	s.mu.Lock()
	s.runs++
	s.lastRun = end
	s.last = result
	s.mu.Unlock()

	evt := log.Info()
	if !result.Success {
		evt = log.Error()
	}
	evt.
		Str("batch_id", result.BatchID.String()).
		Dur("duration", result.Duration).
		Int("records", result.Records).
		Int("providers", result.Providers).
		Bool("committed", result.Committed).
		Str("error", result.Error).
		Msg("Scheduled batch finished")

	return result
}

// GetStatus returns a snapshot of the scheduler state.
func (s *Scheduler) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	var uptime time.Duration
	if s.running {
		uptime = time.Since(s.startTime)
	}

	return Status{
		Running:  s.running,
		InFlight: s.inFlight,
		Interval: s.config.Interval,
		Runs:     s.runs,
		Skips:    s.skips,
		LastRun:  s.lastRun,
		NextRun:  s.nextRun,
		Uptime:   uptime,
		Last:     s.last,
	}
}

func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		s.skips++
		return false
	}
	s.inFlight = true
	return true
}

func (s *Scheduler) end() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}
