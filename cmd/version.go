package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitepipe/internal/version"
)

var (
	versionFormat   = newEnumValue("text", "text", "json")
	versionShort    bool
	versionDetailed bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the version, git commit, build time, Go version and platform.

Examples:
  sitepipe version               # Show version
  sitepipe version --detailed    # Show detailed version info
  sitepipe version --format json # Output as JSON`,
	Args: cobra.NoArgs,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().VarP(versionFormat, "format", "f", "output format (text, json)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "show short version only")
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	if versionFormat.String() == "json" {
		return outputVersionJSON(w)
	}
	switch {
	case versionShort:
		_, err := fmt.Fprintln(w, version.GetShortVersion())
		return err
	case versionDetailed:
		_, err := fmt.Fprintln(w, version.GetDetailedVersion())
		return err
	default:
		_, err := fmt.Fprintf(w, "%s %s\n", version.Name, version.GetShortVersion())
		return err
	}
}

func outputVersionJSON(w io.Writer) error {
	info := version.GetBuildInfo()
	out := struct {
		*version.BuildInfo
		IsRelease bool `json:"is_release"`
	}{info, version.IsRelease()}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
