package tasks

import (
	"bytes"
	"context"
	"path/filepath"

	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/paths"
	"github.com/conneroisu/sitepipe/internal/transform"
)

// ScriptTask minifies every script source and concatenates the results, in
// lexical file order, into a single bundle. With source maps enabled the
// per-file maps are combined into a sectioned map next to the bundle.
type ScriptTask struct {
	resolver   *paths.Resolver
	minifier   *transform.ScriptMinifier
	bundleName string
	logger     logging.Logger
}

func NewScriptTask(resolver *paths.Resolver, minifier *transform.ScriptMinifier, bundleName string, logger logging.Logger) *ScriptTask {
	return &ScriptTask{
		resolver:   resolver,
		minifier:   minifier,
		bundleName: bundleName,
		logger:     logger.WithComponent(NameScript),
	}
}

func (t *ScriptTask) Name() string { return NameScript }

// BundlePath returns where the bundle is written.
func (t *ScriptTask) BundlePath() string {
	return filepath.Join(t.resolver.MustResolve(paths.Script, paths.Destination), t.bundleName)
}

func (t *ScriptTask) Run(ctx context.Context) (*Result, error) {
	res, op := begin(t.logger, NameScript)
	err := t.run(ctx, res)
	return finish(ctx, res, op, err)
}

func (t *ScriptTask) run(ctx context.Context, res *Result) error {
	files, err := expand(t.resolver.MustResolve(paths.Script, paths.Source))
	if err != nil {
		return err
	}

	target := t.BundlePath()
	sourceMap := transform.NewIndexMap(t.bundleName)

	var bundle bytes.Buffer
	parts, line := 0, 0
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !hasExt(file, ".js", ".mjs") {
			continue
		}

		src, err := readFile(file)
		if err != nil {
			return err
		}
		out, err := t.minifier.Minify(ctx, file, sourceName(filepath.Dir(target), file), src)
		if err != nil {
			return err
		}

		// Every part is terminated explicitly so that automatic semicolon
		// insertion cannot merge the tail of one file with the next.
		code := bytes.TrimRight(out.Code, "; \t\r\n")
		if len(code) == 0 {
			continue
		}
		sourceMap.Add(line, out.SourceMap)
		bundle.Write(code)
		bundle.WriteString(";\n")
		line += bytes.Count(code, []byte("\n")) + 1
		parts++
	}

	if parts == 0 {
		return t.removeStale(ctx, target)
	}

	if t.minifier.SourceMaps() {
		data, err := sourceMap.Marshal()
		if err != nil {
			return err
		}
		bundle.WriteString("//# sourceMappingURL=" + t.bundleName + ".map\n")
		if err := writeFile(target, bundle.Bytes(), 0o644); err != nil {
			return err
		}
		res.add(target)
		if err := writeFile(target+".map", data, 0o644); err != nil {
			return err
		}
		res.add(target + ".map")
		return nil
	}

	if err := writeFile(target, bundle.Bytes(), 0o644); err != nil {
		return err
	}
	res.add(target)
	if _, err := removeFile(target + ".map"); err != nil {
		return err
	}
	return nil
}

// removeStale deletes a bundle left over from sources that no longer exist,
// so that references to it fail the injector's existence check.
func (t *ScriptTask) removeStale(ctx context.Context, target string) error {
	removed, err := removeFile(target)
	if err != nil {
		return err
	}
	if _, err := removeFile(target + ".map"); err != nil {
		return err
	}
	if removed {
		t.logger.Warn(ctx, nil, "No scripts left to bundle, removed stale bundle", "bundle", target)
		return nil
	}
	t.logger.Debug(ctx, "No scripts to bundle")
	return nil
}

// sourceName is file relative to dir in slash form, as recorded in a map.
func sourceName(dir, file string) string {
	rel, err := filepath.Rel(dir, file)
	if err != nil {
		return filepath.ToSlash(file)
	}
	return filepath.ToSlash(rel)
}
