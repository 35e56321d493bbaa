// Package build runs the pipeline tasks as an ordered list of steps and
// reports what each step did.
package build

import (
	"context"
	"time"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/tasks"
)

// Status is the outcome of one step.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Step is one named unit of work. Run returns the files it wrote.
type Step struct {
	Name string
	Run  func(ctx context.Context) ([]string, error)
}

// TaskStep adapts a pipeline task to a Step.
func TaskStep(t tasks.Task) Step {
	return Step{
		Name: t.Name(),
		Run: func(ctx context.Context) ([]string, error) {
			res, err := t.Run(ctx)
			if res == nil {
				return nil, err
			}
			return res.Outputs, err
		},
	}
}

// StepResult records the outcome of one step.
type StepResult struct {
	Name     string
	Status   Status
	Duration time.Duration
	Outputs  []string
	Err      error
}

// Report holds one StepResult per requested step, in order.
type Report struct {
	Started  time.Time
	Duration time.Duration
	Steps    []StepResult
}

// Succeeded reports whether every step succeeded.
func (r *Report) Succeeded() bool {
	for _, s := range r.Steps {
		if s.Status != StatusSucceeded {
			return false
		}
	}
	return true
}

// Failed returns the failing step, or nil.
func (r *Report) Failed() *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Status == StatusFailed {
			return &r.Steps[i]
		}
	}
	return nil
}

// Outputs returns every file written by the run.
func (r *Report) Outputs() []string {
	var out []string
	for _, s := range r.Steps {
		out = append(out, s.Outputs...)
	}
	return out
}

// Runner executes steps strictly in order and stops at the first failure.
type Runner struct {
	logger logging.Logger
}

func NewRunner(logger logging.Logger) *Runner {
	return &Runner{logger: logger.WithComponent("runner")}
}

// Run executes steps in order. When a step fails the remaining steps are
// recorded as skipped and the returned error is a *errors.StepError
// wrapping the failure. The report is always non-nil.
func (r *Runner) Run(ctx context.Context, steps ...Step) (*Report, error) {
	report := &Report{Started: time.Now(), Steps: make([]StepResult, len(steps))}
	for i, s := range steps {
		report.Steps[i] = StepResult{Name: s.Name, Status: StatusSkipped}
	}
	defer func() { report.Duration = time.Since(report.Started) }()

	for i, s := range steps {
		result := &report.Steps[i]

		if err := ctx.Err(); err != nil {
			return report, err
		}

		r.logger.Debug(ctx, "Running step", "step", s.Name)
		start := time.Now()
		outputs, err := s.Run(ctx)
		result.Duration = time.Since(start)
		result.Outputs = outputs

		if err != nil {
			result.Status = StatusFailed
			result.Err = err
			return report, &errors.StepError{Step: s.Name, Cause: err}
		}
		result.Status = StatusSucceeded
	}
	return report, nil
}
