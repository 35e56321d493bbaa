package watcher

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/conneroisu/sitepipe/internal/build"
	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/paths"
	"github.com/conneroisu/sitepipe/internal/tasks"
)

// TaskRunner runs named pipeline tasks in order. *build.Builder implements it.
type TaskRunner interface {
	Run(ctx context.Context, names ...string) (*build.Report, error)
}

// Subscription binds a source category to the tasks rebuilt when it changes.
type Subscription struct {
	Category paths.Category
	Tasks    []string
}

// DefaultSubscriptions watches styles, scripts and markup. Markup changes
// overwrite injected output, so injection runs again after them. Vendor
// assets are not watched.
var DefaultSubscriptions = []Subscription{
	{Category: paths.Style, Tasks: []string{tasks.NameStyle}},
	{Category: paths.Script, Tasks: []string{tasks.NameScript}},
	{Category: paths.Markup, Tasks: []string{tasks.NameMarkup, tasks.NameInject}},
}

// Dispatcher owns one file watcher and one serial runner per subscription.
// Subscriptions share nothing, so categories rebuild in parallel while runs
// within a category never overlap.
type Dispatcher struct {
	resolver *paths.Resolver
	runner   TaskRunner
	debounce time.Duration
	subs     []Subscription
	failures *errors.Collector
	logger   logging.Logger
	ready    chan struct{}
}

// NewDispatcher creates a dispatcher for DefaultSubscriptions. Failures are
// recorded in failures, keyed by category, and cleared by the next
// successful run.
func NewDispatcher(cfg config.Config, runner TaskRunner, failures *errors.Collector, logger logging.Logger) *Dispatcher {
	if failures == nil {
		failures = errors.NewCollector()
	}
	return &Dispatcher{
		resolver: paths.NewResolver(cfg.Paths),
		runner:   runner,
		debounce: cfg.Watch.Debounce,
		subs:     DefaultSubscriptions,
		failures: failures,
		logger:   logger.WithComponent("dispatcher"),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once every subscription is watching.
func (d *Dispatcher) Ready() <-chan struct{} { return d.ready }

// Failures returns the collector holding the current per-category failures.
func (d *Dispatcher) Failures() *errors.Collector { return d.failures }

// Run watches until ctx is cancelled. A category whose source directory
// does not exist is skipped with a warning.
func (d *Dispatcher) Run(ctx context.Context) error {
	var (
		watchers []*FileWatcher
		runners  []*serialRunner
	)
	defer func() {
		for _, fw := range watchers {
			_ = fw.Stop()
		}
		for _, sr := range runners {
			sr.Wait()
		}
	}()

	for _, sub := range d.subs {
		fw, sr, err := d.subscribe(ctx, sub)
		if err != nil {
			return err
		}
		if fw == nil {
			continue
		}
		watchers = append(watchers, fw)
		runners = append(runners, sr)
	}
	close(d.ready)
	d.logger.Info(ctx, "Watching for changes", "categories", len(watchers))

	<-ctx.Done()
	return nil
}

func (d *Dispatcher) subscribe(ctx context.Context, sub Subscription) (*FileWatcher, *serialRunner, error) {
	glob := d.resolver.MustResolve(sub.Category, paths.Source)
	dir, err := d.resolver.Base(sub.Category)
	if err != nil {
		return nil, nil, err
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		d.logger.Warn(ctx, err, "Source directory missing, not watching", "category", sub.Category, "path", dir)
		return nil, nil, nil
	}

	fw, err := NewFileWatcher(d.debounce, d.logger)
	if err != nil {
		return nil, nil, err
	}
	fw.AddFilter(GlobFilter(glob))
	fw.AddFilter(NoTempFilter)

	if err := fw.AddRecursive(dir); err != nil {
		_ = fw.Stop()
		return nil, nil, fmt.Errorf("watching %s: %w", sub.Category, err)
	}

	sr := newSerialRunner(func(ctx context.Context) { d.rebuild(ctx, sub) })
	fw.AddHandler(func(ctx context.Context, events []ChangeEvent) error {
		d.logger.Debug(ctx, "Change detected", "category", sub.Category, "files", len(events))
		sr.Trigger(ctx)
		return nil
	})

	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return nil, nil, err
	}
	return fw, sr, nil
}

func (d *Dispatcher) rebuild(ctx context.Context, sub Subscription) {
	source := string(sub.Category)
	_, err := d.runner.Run(ctx, sub.Tasks...)
	if err == nil {
		d.failures.Record(source, nil)
		return
	}
	if ctx.Err() != nil {
		return
	}

	d.failures.Record(source, err)
	if te, ok := errors.AsTransform(err); ok {
		d.logger.Error(ctx, err, "Rebuild failed", "category", sub.Category, "file", te.File, "line", te.Line, "column", te.Column)
		return
	}
	d.logger.Error(ctx, err, "Rebuild failed", "category", sub.Category)
}

// serialRunner runs fn at most once at a time. Triggers that arrive while
// a run is in flight collapse into a single follow-up run.
type serialRunner struct {
	fn func(ctx context.Context)

	mu      sync.Mutex
	running bool
	pending bool
	wg      sync.WaitGroup
}

func newSerialRunner(fn func(ctx context.Context)) *serialRunner {
	return &serialRunner{fn: fn}
}

// Trigger requests a run and returns without waiting for it.
func (s *serialRunner) Trigger(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	if s.running {
		s.pending = true
		return
	}
	s.running = true
	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *serialRunner) loop(ctx context.Context) {
	defer s.wg.Done()
	for {
		s.fn(ctx)

		s.mu.Lock()
		if !s.pending || ctx.Err() != nil {
			s.running = false
			s.pending = false
			s.mu.Unlock()
			return
		}
		s.pending = false
		s.mu.Unlock()
	}
}

// Wait blocks until no run is in flight.
func (s *serialRunner) Wait() {
	s.wg.Wait()
}
