package tasks

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/paths"
)

// CleanTask removes the public root. A missing root is not an error.
type CleanTask struct {
	resolver *paths.Resolver
	logger   logging.Logger
}

func NewCleanTask(resolver *paths.Resolver, logger logging.Logger) *CleanTask {
	return &CleanTask{resolver: resolver, logger: logger.WithComponent(NameClean)}
}

func (t *CleanTask) Name() string { return NameClean }

func (t *CleanTask) Run(ctx context.Context) (*Result, error) {
	res, op := begin(t.logger, NameClean)
	err := t.run(ctx)
	return finish(ctx, res, op, err)
}

func (t *CleanTask) run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	root := t.resolver.PublicRoot()
	if err := t.checkSafe(root); err != nil {
		return err
	}
	if err := os.RemoveAll(root); err != nil {
		return errors.NewFSError("remove", root, err)
	}
	t.logger.Debug(ctx, "Removed public root", "path", root)
	return nil
}

// checkSafe refuses roots whose removal would take sources or the working
// directory with them.
func (t *CleanTask) checkSafe(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return errors.NewFSError("resolve", root, err)
	}
	if abs == filepath.VolumeName(abs)+string(filepath.Separator) {
		return errors.NewConfigError("paths.public", "refusing to remove filesystem root")
	}
	if cwd, err := os.Getwd(); err == nil && isWithin(cwd, abs) {
		return errors.NewConfigError("paths.public", "refusing to remove %s: it contains the working directory", root)
	}
	src, err := filepath.Abs(t.resolver.SourceRoot())
	if err == nil && isWithin(src, abs) {
		return errors.NewConfigError("paths.public", "refusing to remove %s: it contains the source root", root)
	}
	return nil
}

func isWithin(child, parent string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
