package tasks

import (
	"context"
	"path/filepath"

	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/paths"
	"github.com/conneroisu/sitepipe/internal/transform"
)

// MarkupTask minifies markup into <public>/html, keeping whitespace and
// comments.
type MarkupTask struct {
	resolver *paths.Resolver
	minify   transform.Transformer
	logger   logging.Logger
}

func NewMarkupTask(resolver *paths.Resolver, minify transform.Transformer, logger logging.Logger) *MarkupTask {
	return &MarkupTask{
		resolver: resolver,
		minify:   minify,
		logger:   logger.WithComponent(NameMarkup),
	}
}

func (t *MarkupTask) Name() string { return NameMarkup }

func (t *MarkupTask) Run(ctx context.Context) (*Result, error) {
	res, op := begin(t.logger, NameMarkup)
	err := t.run(ctx, res)
	return finish(ctx, res, op, err)
}

func (t *MarkupTask) run(ctx context.Context, res *Result) error {
	files, err := expand(t.resolver.MustResolve(paths.Markup, paths.Source))
	if err != nil {
		return err
	}
	dest := t.resolver.MustResolve(paths.Markup, paths.Destination)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !hasExt(file, ".html", ".htm") {
			continue
		}

		src, err := readFile(file)
		if err != nil {
			return err
		}
		out, err := t.minify.Transform(ctx, file, src)
		if err != nil {
			return err
		}

		target := filepath.Join(dest, filepath.Base(file))
		if err := writeFile(target, out, 0o644); err != nil {
			return err
		}
		res.add(target)
	}
	return nil
}
