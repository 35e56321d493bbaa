package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitepipe/internal/build"
	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/paths"
	"github.com/conneroisu/sitepipe/internal/tasks"
	"github.com/conneroisu/sitepipe/internal/transform"
)

// app is everything a command needs, wired from the loaded configuration.
type app struct {
	cfg      config.Config
	logger   logging.Logger
	compiler transform.StyleCompiler
	builder  *build.Builder
	failures *errors.Collector
	out      io.Writer
	color    bool
}

func newApp(cmd *cobra.Command) (*app, error) {
	if configErr != nil {
		return nil, configErr
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := paths.NewResolver(cfg.Paths).Validate(); err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, errors.NewConfigError("log.level", "%v", err)
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})

	compiler, err := transform.NewStyleCompiler(cfg.Style, logger)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		compiler: compiler,
		builder:  build.NewBuilder(tasks.NewSet(cfg, compiler, logger), logger),
		failures: errors.NewCollector(),
		out:      cmd.ErrOrStderr(),
		color:    !noColor && os.Getenv("NO_COLOR") == "",
	}, nil
}

func (a *app) Close() error {
	return a.compiler.Close()
}

// report prints the step summary and passes err through.
func (a *app) report(r *build.Report, err error) error {
	if r != nil {
		if werr := build.WriteSummary(a.out, r, a.color); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// withApp runs fn with a fully wired app and releases it afterwards.
func withApp(fn func(ctx context.Context, a *app) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext(cmd)
		defer cancel()
		return fn(ctx, a)
	}
}
