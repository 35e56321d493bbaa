package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitepipe/internal/config"
)

var (
	initForce    bool
	initScaffold bool
)

var initCmd = &cobra.Command{
	Use:     "init",
	Aliases: []string{"i"},
	Short:   "Write a default .sitepipe.yml",
	Long: `Write the default configuration to .sitepipe.yml (or the --config path).

Examples:
  sitepipe init              # Write .sitepipe.yml
  sitepipe init --force      # Replace an existing file
  sitepipe init --scaffold   # Also create a starter src/ tree`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing configuration file")
	initCmd.Flags().BoolVar(&initScaffold, "scaffold", false, "create starter sources under the source root")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = config.DefaultFileName
	}

	cfg := config.Default()
	if err := config.WriteFile(path, cfg, initForce); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)

	if !initScaffold {
		return nil
	}
	created, err := scaffold(cfg)
	if err != nil {
		return err
	}
	for _, f := range created {
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", f)
	}
	return nil
}

const starterPage = `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="utf-8">
    <title>sitepipe</title>
    <!-- inject:header -->
    <!-- endinject -->
  </head>
  <body>
    <h1>Hello from sitepipe</h1>
    <!-- inject:footer -->
    <!-- endinject -->
  </body>
</html>
`

// scaffold writes starter sources, leaving existing files alone. It
// returns the files it created.
func scaffold(cfg config.Config) ([]string, error) {
	src := cfg.Paths.Source
	files := []struct {
		path    string
		content string
	}{
		{filepath.Join(src, "html", "index.html"), starterPage},
		{filepath.Join(src, "sass", "style.scss"), "$accent: #0d6efd;\n\nh1 {\n  color: $accent;\n}\n"},
		{filepath.Join(src, "js", "main.js"), "document.addEventListener(\"DOMContentLoaded\", function () {\n  console.log(\"ready\");\n});\n"},
		{filepath.Join(src, "vendor", "README.md"), "Files under vendor/ are copied to the public root unchanged.\n"},
	}

	var created []string
	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			return created, err
		}
		if err := os.WriteFile(f.path, []byte(f.content), 0o644); err != nil {
			return created, err
		}
		created = append(created, f.path)
	}
	return created, nil
}
