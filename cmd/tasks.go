package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitepipe/internal/tasks"
)

var taskCommands = []struct {
	name  string
	short string
}{
	{tasks.NameClean, "Delete the public root"},
	{tasks.NameVendor, "Copy vendor assets into the public root"},
	{tasks.NameStyle, "Compile and minify stylesheets"},
	{tasks.NameScript, "Minify and bundle scripts"},
	{tasks.NameMarkup, "Minify markup"},
	{tasks.NameInject, "Inject stylesheet and script references into generated markup"},
}

func init() {
	for _, tc := range taskCommands {
		name := tc.name
		rootCmd.AddCommand(&cobra.Command{
			Use:   name,
			Short: tc.short,
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, a *app) error {
				return a.report(a.builder.Task(ctx, name))
			}),
		})
	}
}
