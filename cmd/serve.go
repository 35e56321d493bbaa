package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/sitepipe/internal/server"
	"github.com/conneroisu/sitepipe/internal/watcher"
)

var (
	serveWatch        bool
	serveNoLiveReload bool
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Clean, build and serve the public root with live reload",
	Long: `Clean and build, then serve the public root. Browsers reload when files
under the public root change.

Examples:
  sitepipe serve                 # Serve on localhost:8000
  sitepipe serve -p 9000         # Serve on another port
  sitepipe serve --watch         # Also rebuild when sources change`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(runServeApp(serveWatch))(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8000, "port to serve on")
	serveCmd.Flags().String("host", "localhost", "host to bind to")
	serveCmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "rebuild when sources change")
	serveCmd.Flags().BoolVar(&serveNoLiveReload, "no-livereload", false, "do not inject the live reload client")
	addValidation(serveCmd, "port", ValidatePort)
}

func runServeApp(watch bool) func(ctx context.Context, a *app) error {
	return func(ctx context.Context, a *app) error {
		if serveNoLiveReload {
			a.cfg.Server.LiveReload = false
		}
		if err := a.initialBuild(ctx); err != nil {
			return err
		}

		srv := server.New(a.cfg, a.builder, a.failures, a.logger)
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Run(ctx) })
		if watch {
			g.Go(func() error {
				return watcher.NewDispatcher(a.cfg, a.builder, a.failures, a.logger).Run(ctx)
			})
		}
		return g.Wait()
	}
}
