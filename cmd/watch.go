package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitepipe/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Build once, then rebuild categories as their sources change",
	Long: `Clean and build once, then watch src/sass, src/js and src/html. A change
rebuilds only its category; markup changes also re-run injection. Failed
rebuilds are logged and watching continues.`,
	Args: cobra.NoArgs,
	RunE: withApp(runWatch),
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(ctx context.Context, a *app) error {
	if err := a.initialBuild(ctx); err != nil {
		return err
	}
	return watcher.NewDispatcher(a.cfg, a.builder, a.failures, a.logger).Run(ctx)
}

// initialBuild cleans and builds. A failure aborts startup, so nothing is
// served or watched on top of a broken tree.
func (a *app) initialBuild(ctx context.Context) error {
	return a.report(a.builder.Rebuild(ctx))
}
