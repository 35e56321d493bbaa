// Package tasks implements the pipeline's file tasks: style compilation,
// script bundling, markup minification, vendor copying, reference
// injection and cleaning. Each task reads the files matching its source
// glob, applies one transformation and writes into its destination
// directory. Tasks share no state with each other.
package tasks

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/paths"
	"github.com/conneroisu/sitepipe/internal/transform"
)

// Task names, as exposed on the command line.
const (
	NameClean  = "clean"
	NameVendor = "vendor"
	NameMarkup = "html"
	NameStyle  = "sass"
	NameScript = "js"
	NameInject = "inject"
)

// Task is one read-transform-write operation.
type Task interface {
	Name() string
	Run(ctx context.Context) (*Result, error)
}

// Result lists the files a task wrote. On failure it holds what was
// written before the error.
type Result struct {
	Task     string
	Outputs  []string
	Duration time.Duration
}

func (r *Result) add(path string) { r.Outputs = append(r.Outputs, path) }

// Set holds one instance of every task, wired to the same configuration.
type Set struct {
	Clean  *CleanTask
	Vendor *VendorTask
	Markup *MarkupTask
	Style  *StyleTask
	Script *ScriptTask
	Inject *InjectTask
}

// NewSet builds every task from cfg. The style compiler is owned by the
// caller, which must Close it.
func NewSet(cfg config.Config, compiler transform.StyleCompiler, logger logging.Logger) *Set {
	resolver := paths.NewResolver(cfg.Paths)
	minifier := transform.NewMinifier()

	return &Set{
		Clean:  NewCleanTask(resolver, logger),
		Vendor: NewVendorTask(resolver, logger),
		Markup: NewMarkupTask(resolver, minifier.HTML(), logger),
		Style:  NewStyleTask(resolver, compiler, minifier.CSS(), cfg.Style.SourceMap, logger),
		Script: NewScriptTask(resolver, transform.NewScriptMinifier(cfg.Bundle.SourceMap), cfg.Bundle.ScriptName, logger),
		Inject: NewInjectTask(resolver, cfg.Inject, logger),
	}
}

// All returns the tasks in build order, preceded by clean.
func (s *Set) All() []Task {
	return []Task{s.Clean, s.Vendor, s.Markup, s.Style, s.Script, s.Inject}
}

// Lookup returns the task called name.
func (s *Set) Lookup(name string) (Task, bool) {
	for _, t := range s.All() {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// expand returns the regular files matching glob in lexical order. A glob
// whose base directory does not exist matches nothing.
func expand(glob string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(glob, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.NewConfigError("glob", "%q: %v", glob, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// hasExt reports whether file has one of exts (lower case, with dot).
func hasExt(file string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(file))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewFSError("read", path, err)
	}
	return data, nil
}

func writeFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewFSError("mkdir", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return errors.NewFSError("write", path, err)
	}
	return nil
}

// removeFile deletes path if it exists. It reports whether anything was
// removed.
func removeFile(path string) (bool, error) {
	err := os.Remove(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, errors.NewFSError("remove", path, err)
	}
}

// trimExt strips the extension from a file's base name.
func trimExt(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func begin(logger logging.Logger, name string) (*Result, *logging.PerfLogger) {
	return &Result{Task: name}, logging.StartOperation(logger, name)
}

func finish(ctx context.Context, res *Result, op *logging.PerfLogger, err error) (*Result, error) {
	if err != nil {
		res.Duration = op.End(ctx, "outputs", len(res.Outputs), "failed", true)
		return res, err
	}
	res.Duration = op.End(ctx, "outputs", len(res.Outputs))
	return res, nil
}
