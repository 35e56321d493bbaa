package tasks

import (
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/paths"
)

// InjectTask rewrites generated markup in place, replacing the header and
// footer marker regions with reference tags for the configured styles and
// scripts.
type InjectTask struct {
	resolver *paths.Resolver
	cfg      config.InjectConfig
	logger   logging.Logger
}

func NewInjectTask(resolver *paths.Resolver, cfg config.InjectConfig, logger logging.Logger) *InjectTask {
	cfg.HeaderStyles = append([]string(nil), cfg.HeaderStyles...)
	cfg.FooterScripts = append([]string(nil), cfg.FooterScripts...)
	return &InjectTask{resolver: resolver, cfg: cfg, logger: logger.WithComponent(NameInject)}
}

func (t *InjectTask) Name() string { return NameInject }

func (t *InjectTask) Run(ctx context.Context) (*Result, error) {
	res, op := begin(t.logger, NameInject)
	err := t.run(ctx, res)
	return finish(ctx, res, op, err)
}

func (t *InjectTask) run(ctx context.Context, res *Result) error {
	if err := t.checkInputs(); err != nil {
		return err
	}

	dir := t.resolver.MustResolve(paths.Markup, paths.Destination)
	files, err := expand(filepath.Join(dir, "*.html"))
	if err != nil {
		return err
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, err := readFile(file)
		if err != nil {
			return err
		}
		out, err := t.Inject(file, string(src))
		if err != nil {
			return err
		}
		if out == string(src) {
			t.logger.Debug(ctx, "Nothing to inject", "file", file)
			continue
		}
		if err := writeFile(file, []byte(out), 0o644); err != nil {
			return err
		}
		res.add(file)
	}
	return nil
}

// checkInputs stats every configured reference. Missing files mean the
// injector ran before the tasks producing them.
func (t *InjectTask) checkInputs() error {
	var missing []string
	for _, ref := range append(append([]string(nil), t.cfg.HeaderStyles...), t.cfg.FooterScripts...) {
		if _, err := os.Stat(ref); err != nil {
			if os.IsNotExist(err) {
				missing = append(missing, ref)
				continue
			}
			return errors.NewFSError("stat", ref, err)
		}
	}
	if len(missing) > 0 {
		return &errors.OrderingError{Task: NameInject, Missing: missing}
	}
	return nil
}

// Inject returns content with both marker regions replaced. file is the
// markup's own path, used to make references relative. Content without
// markers is returned unchanged.
func (t *InjectTask) Inject(file, content string) (string, error) {
	styles, err := t.tags(file, t.cfg.HeaderStyles, `<link rel="stylesheet" href="%s">`)
	if err != nil {
		return "", err
	}
	scripts, err := t.tags(file, t.cfg.FooterScripts, `<script src="%s"></script>`)
	if err != nil {
		return "", err
	}

	content, err = replaceRegions(file, content, t.cfg.HeaderTag, t.cfg.EndTag, styles)
	if err != nil {
		return "", err
	}
	return replaceRegions(file, content, t.cfg.FooterTag, t.cfg.EndTag, scripts)
}

func (t *InjectTask) tags(file string, refs []string, format string) ([]string, error) {
	fromDir, err := filepath.Abs(filepath.Dir(file))
	if err != nil {
		return nil, errors.NewFSError("resolve", file, err)
	}

	tags := make([]string, 0, len(refs))
	for _, ref := range refs {
		abs, err := filepath.Abs(ref)
		if err != nil {
			return nil, errors.NewFSError("resolve", ref, err)
		}
		rel, err := filepath.Rel(fromDir, abs)
		if err != nil {
			return nil, errors.NewFSError("relativize", ref, err)
		}
		tags = append(tags, fmt.Sprintf(format, html.EscapeString(filepath.ToSlash(rel))))
	}
	return tags, nil
}

// replaceRegions rewrites every start...end region in content. Each tag
// goes on its own line, indented like the start marker.
func replaceRegions(file, content, start, end string, tags []string) (string, error) {
	var b strings.Builder
	rest := content

	for {
		i := strings.Index(rest, start)
		if i < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		after := rest[i+len(start):]
		j := strings.Index(after, end)
		if j < 0 {
			return "", &errors.TransformError{
				Task:    NameInject,
				File:    file,
				Line:    strings.Count(content[:len(content)-len(rest)+i], "\n") + 1,
				Message: fmt.Sprintf("%s has no matching %s", start, end),
			}
		}

		indent := indentOf(rest[:i])
		b.WriteString(rest[:i])
		b.WriteString(start)
		b.WriteString("\n")
		for _, tag := range tags {
			b.WriteString(indent)
			b.WriteString(tag)
			b.WriteString("\n")
		}
		b.WriteString(indent)
		b.WriteString(end)

		rest = after[j+len(end):]
	}
}

// indentOf returns the whitespace between the last newline of prefix and
// its end, or "" when that stretch contains anything else.
func indentOf(prefix string) string {
	line := prefix[strings.LastIndex(prefix, "\n")+1:]
	if strings.TrimLeft(line, " \t") != "" {
		return ""
	}
	return line
}
