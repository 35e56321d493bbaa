package build

import (
	"context"
	"fmt"
	"sync"

	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/tasks"
)

// Order is the build sequence. Injection runs last because it needs every
// other output on disk.
var Order = []string{
	tasks.NameVendor,
	tasks.NameMarkup,
	tasks.NameStyle,
	tasks.NameScript,
	tasks.NameInject,
}

// Builder runs named tasks through a Runner and remembers the last report.
// It is safe for concurrent use; runs themselves are not serialized here.
type Builder struct {
	tasks  *tasks.Set
	runner *Runner
	logger logging.Logger

	mu   sync.RWMutex
	last *Report
}

func NewBuilder(set *tasks.Set, logger logging.Logger) *Builder {
	return &Builder{
		tasks:  set,
		runner: NewRunner(logger),
		logger: logger.WithComponent("builder"),
	}
}

// Build runs vendor, html, sass, js and inject in that order.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	return b.Run(ctx, Order...)
}

// Rebuild cleans the public root, then builds.
func (b *Builder) Rebuild(ctx context.Context) (*Report, error) {
	return b.Run(ctx, append([]string{tasks.NameClean}, Order...)...)
}

// Task runs the single task called name.
func (b *Builder) Task(ctx context.Context, name string) (*Report, error) {
	return b.Run(ctx, name)
}

// Run executes the named tasks in the given order.
func (b *Builder) Run(ctx context.Context, names ...string) (*Report, error) {
	steps := make([]Step, 0, len(names))
	for _, name := range names {
		t, ok := b.tasks.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown task %q", name)
		}
		steps = append(steps, TaskStep(t))
	}

	report, err := b.runner.Run(ctx, steps...)

	b.mu.Lock()
	b.last = report
	b.mu.Unlock()

	if err != nil {
		return report, err
	}
	b.logger.Info(ctx, "Steps completed", "steps", names, "outputs", len(report.Outputs()), "duration", report.Duration.String())
	return report, nil
}

// LastReport returns the most recent report, or nil before the first run.
func (b *Builder) LastReport() *Report {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last
}
