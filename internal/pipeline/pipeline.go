// Package pipeline provides the staged batch engine the analysis flow runs
// on. A Context carries the record batch, per-item diagnostics and batch-level
// faults through an ordered list of stages; the caller decides commit or
// rollback from the fault list.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Context is the shared state threaded through every stage of one batch run.
// Data holds the current record slice and changes type as stages transform
// the batch; Result mirrors Data after the run. Errors collects per-item
// diagnostics, Meta collects per-stage counters and timings.
type Context struct {
	Data          any
	Result        any
	Errors        []string
	Meta          map[string]any
	SkipRemaining bool
	User          string

	hardErrors []string
}

// NewContext builds a context around the initial batch payload.
func NewContext(data any) *Context {
	return &Context{Data: data, Meta: make(map[string]any)}
}

// AddError records a per-item diagnostic. The offending item is dropped from
// the forward stream by the stage that found it; the batch keeps going.
func (c *Context) AddError(msg string) {
	c.Errors = append(c.Errors, msg)
}

// AddErrorf records a formatted per-item diagnostic.
func (c *Context) AddErrorf(format string, args ...any) {
	c.AddError(fmt.Sprintf(format, args...))
}

// Fail records a batch-level fault. Hard errors leave the stream flowing so
// later stages still run, but the caller must roll back the unit of work.
func (c *Context) Fail(stage string, err error) {
	msg := fmt.Sprintf("%s: %v", stage, err)
	c.hardErrors = append(c.hardErrors, msg)
	c.Errors = append(c.Errors, msg)
}

// HasHardErrors reports whether any batch-level fault was recorded.
func (c *Context) HasHardErrors() bool {
	return len(c.hardErrors) > 0
}

// HardErrors returns the batch-level faults recorded so far.
func (c *Context) HardErrors() []string {
	out := make([]string, len(c.hardErrors))
	copy(out, c.hardErrors)
	return out
}

// IsValid reports whether the run finished without any diagnostic.
func (c *Context) IsValid() bool {
	return len(c.Errors) == 0
}

// Stage is one step of the batch pipeline. Process reads and replaces
// pc.Data; a returned error is a batch-level fault, per-item problems go
// through pc.AddError instead.
type Stage interface {
	Name() string
	Process(ctx context.Context, pc *Context) error
}

// Runner executes stages in order over one context.
type Runner struct {
	stages []Stage
}

// NewRunner builds a runner over the given stages.
func NewRunner(stages ...Stage) *Runner {
	return &Runner{stages: stages}
}

// Add appends a stage and returns the runner for chaining.
func (r *Runner) Add(stage Stage) *Runner {
	r.stages = append(r.stages, stage)
	return r
}

// Run executes the stages in order. A stage error is recorded as a batch
// fault and the remaining stages still run; SkipRemaining short-circuits the
// rest of the chain. Per-stage durations land in Meta under
// "<stage>_duration_ms", and Result mirrors Data once the run ends.
func (r *Runner) Run(ctx context.Context, pc *Context) *Context {
	for _, stage := range r.stages {
		if pc.SkipRemaining {
			log.Warn().Str("stage", stage.Name()).Msg("pipeline short-circuited, remaining stages skipped")
			break
		}
		if err := ctx.Err(); err != nil {
			pc.Fail(stage.Name(), err)
			break
		}

		start := time.Now()
		err := stage.Process(ctx, pc)
		elapsed := time.Since(start)
		pc.Meta[stage.Name()+"_duration_ms"] = elapsed.Milliseconds()

		if err != nil {
			pc.Fail(stage.Name(), err)
			log.Error().Err(err).Str("stage", stage.Name()).Dur("elapsed", elapsed).Msg("pipeline stage failed")
			continue
		}
		log.Debug().Str("stage", stage.Name()).Dur("elapsed", elapsed).Msg("pipeline stage done")
	}

	pc.Result = pc.Data
	return pc
}
