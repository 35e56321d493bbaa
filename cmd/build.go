package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var buildClean bool

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Run vendor, html, sass, js and inject in order",
	Long: `Run every task in build order. The first failing task stops the run
and the remaining tasks are reported as skipped.

Examples:
  sitepipe build           # Build into the existing public root
  sitepipe build --clean   # Delete the public root first`,
	Args: cobra.NoArgs,
	RunE: withApp(runBuild),
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().BoolVar(&buildClean, "clean", false, "delete the public root before building")
}

func runBuild(ctx context.Context, a *app) error {
	if buildClean {
		return a.report(a.builder.Rebuild(ctx))
	}
	return a.report(a.builder.Build(ctx))
}
