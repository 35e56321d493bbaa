package server

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/a-h/templ"

	"github.com/conneroisu/sitepipe/internal/build"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/version"
)

const pageStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#222}
table{border-collapse:collapse}td,th{padding:.3rem .8rem;text-align:left;border-bottom:1px solid #ddd}
.succeeded{color:#17803d}.failed{color:#b91c1c}.skipped{color:#a16207}
pre{background:#f5f5f5;padding:.5rem;white-space:pre-wrap}footer{margin-top:2rem;color:#777;font-size:.85rem}`

// layout wraps body in a minimal HTML document.
func layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s</title><style>%s</style></head><body>",
			templ.EscapeString(title), pageStyle); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "<footer>%s %s</footer></body></html>",
			templ.EscapeString(version.Name), templ.EscapeString(version.GetShortVersion()))
		return err
	})
}

// statusPage renders the last build report and current watch failures.
func statusPage(report *build.Report, failures []errors.Entry, clients int) templ.Component {
	sort.Slice(failures, func(i, j int) bool { return failures[i].Source < failures[j].Source })

	return layout("sitepipe status", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := func(format string, args ...interface{}) {
			fmt.Fprintf(w, format, args...)
		}

		p("<h1>Build status</h1>")
		if report == nil {
			p("<p>No build has run yet.</p>")
		} else {
			p("<p>Last run started %s, took %s.</p>",
				templ.EscapeString(report.Started.Format(time.RFC3339)),
				templ.EscapeString(report.Duration.Round(time.Millisecond).String()))
			p("<table><tr><th>Step</th><th>Status</th><th>Duration</th><th>Files</th></tr>")
			for _, s := range report.Steps {
				p(`<tr><td>%s</td><td class="%s">%s</td><td>%s</td><td>%d</td></tr>`,
					templ.EscapeString(s.Name),
					templ.EscapeString(string(s.Status)),
					templ.EscapeString(build.DisplayName(string(s.Status))),
					templ.EscapeString(s.Duration.Round(time.Millisecond).String()),
					len(s.Outputs))
			}
			p("</table>")
			if f := report.Failed(); f != nil {
				p("<pre>%s</pre>", templ.EscapeString(f.Err.Error()))
			}
		}

		p("<h2>Watch</h2>")
		if len(failures) == 0 {
			p("<p>No failing categories.</p>")
		} else {
			p("<ul>")
			for _, e := range failures {
				p(`<li><strong>%s</strong> <span class="failed">%s</span><pre>%s</pre></li>`,
					templ.EscapeString(e.Source),
					templ.EscapeString(e.Timestamp.Format(time.Kitchen)),
					templ.EscapeString(e.Err.Error()))
			}
			p("</ul>")
		}

		p("<p>%d live reload client(s) connected.</p>", clients)
		return nil
	}))
}

// notFoundPage renders the 404 body for path.
func notFoundPage(path string) templ.Component {
	return layout("Not found", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, "<h1>Not found</h1><p><code>%s</code> does not exist under the public root.</p><p><a href=\"/\">Home</a> &middot; <a href=\"%s\">Status</a></p>",
			templ.EscapeString(path), StatusPath)
		return err
	}))
}
