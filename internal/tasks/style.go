package tasks

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/paths"
	"github.com/conneroisu/sitepipe/internal/transform"
)

var styleExts = []string{".scss", ".sass", ".css"}

// StyleTask compiles every non-partial style source into
// <public>/css/<name>.min.css.
type StyleTask struct {
	resolver  *paths.Resolver
	compiler  transform.StyleCompiler
	minify    transform.Transformer
	sourceMap bool
	logger    logging.Logger
}

func NewStyleTask(resolver *paths.Resolver, compiler transform.StyleCompiler, minify transform.Transformer, sourceMap bool, logger logging.Logger) *StyleTask {
	return &StyleTask{
		resolver:  resolver,
		compiler:  compiler,
		minify:    minify,
		sourceMap: sourceMap,
		logger:    logger.WithComponent(NameStyle),
	}
}

func (t *StyleTask) Name() string { return NameStyle }

func (t *StyleTask) Run(ctx context.Context) (*Result, error) {
	res, op := begin(t.logger, NameStyle)
	err := t.run(ctx, res)
	return finish(ctx, res, op, err)
}

func (t *StyleTask) run(ctx context.Context, res *Result) error {
	files, err := expand(t.resolver.MustResolve(paths.Style, paths.Source))
	if err != nil {
		return err
	}
	dest := t.resolver.MustResolve(paths.Style, paths.Destination)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Partials are only reachable through imports.
		if strings.HasPrefix(filepath.Base(file), "_") || !hasExt(file, styleExts...) {
			continue
		}

		src, err := readFile(file)
		if err != nil {
			return err
		}
		out, err := t.compiler.Compile(ctx, file, src)
		if err != nil {
			return err
		}

		name := trimExt(file) + ".min.css"
		target := filepath.Join(dest, name)
		css := out.CSS

		if t.sourceMap && len(out.SourceMap) > 0 {
			// The compiler already compressed its output; minifying again
			// would invalidate the map.
			css = append(css, fmt.Sprintf("\n/*# sourceMappingURL=%s.map */\n", name)...)
			if err := writeFile(target+".map", out.SourceMap, 0o644); err != nil {
				return err
			}
			res.add(target + ".map")
		} else {
			css, err = t.minify.Transform(ctx, file, css)
			if err != nil {
				return err
			}
		}

		if err := writeFile(target, css, 0o644); err != nil {
			return err
		}
		res.add(target)
		t.logger.Debug(ctx, "Compiled stylesheet", "source", file, "output", target)
	}
	return nil
}
