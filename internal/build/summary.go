package build

import (
	"fmt"
	"io"
	"time"

	"github.com/mitchellh/colorstring"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var statusColors = map[Status]string{
	StatusSucceeded: "[green][bold]",
	StatusFailed:    "[red][bold]",
	StatusSkipped:   "[yellow]",
}

// DisplayName returns a step or status name as shown to people.
func DisplayName(name string) string {
	return cases.Title(language.English).String(name)
}

// WriteSummary prints one line per step followed by a total. Colour codes
// are stripped when color is false.
func WriteSummary(w io.Writer, r *Report, color bool) error {
	c := colorstring.Colorize{
		Colors:  colorstring.DefaultColors,
		Disable: !color,
		Reset:   true,
	}

	for _, s := range r.Steps {
		line := fmt.Sprintf("%s  ->[reset] %-8s %s", statusColors[s.Status], s.Name, DisplayName(string(s.Status)))
		if s.Status != StatusSkipped {
			line += fmt.Sprintf(" (%s, %d files)", s.Duration.Round(time.Millisecond), len(s.Outputs))
		}
		if _, err := fmt.Fprintln(w, c.Color(line)); err != nil {
			return err
		}
	}

	total := "[blue][bold]==>[reset] Build finished"
	if !r.Succeeded() {
		total = "[red][bold]==>[reset] Build failed"
	}
	_, err := fmt.Fprintln(w, c.Color(fmt.Sprintf("%s in %s", total, r.Duration.Round(time.Millisecond))))
	return err
}
