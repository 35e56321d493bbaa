package tasks

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/paths"
)

// VendorTask copies third-party assets byte for byte. Paths are kept
// relative to the source root, so src/vendor/js/a.js becomes
// public/vendor/js/a.js.
type VendorTask struct {
	resolver *paths.Resolver
	logger   logging.Logger
}

func NewVendorTask(resolver *paths.Resolver, logger logging.Logger) *VendorTask {
	return &VendorTask{resolver: resolver, logger: logger.WithComponent(NameVendor)}
}

func (t *VendorTask) Name() string { return NameVendor }

func (t *VendorTask) Run(ctx context.Context) (*Result, error) {
	res, op := begin(t.logger, NameVendor)
	err := t.run(ctx, res)
	return finish(ctx, res, op, err)
}

func (t *VendorTask) run(ctx context.Context, res *Result) error {
	files, err := expand(t.resolver.MustResolve(paths.Vendor, paths.Source))
	if err != nil {
		return err
	}
	dest := t.resolver.MustResolve(paths.Vendor, paths.Destination)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(t.resolver.SourceRoot(), file)
		if err != nil {
			return errors.NewFSError("relativize", file, err)
		}
		target := filepath.Join(dest, rel)
		if err := copyFile(file, target); err != nil {
			return err
		}
		res.add(target)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.NewFSError("open", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return errors.NewFSError("stat", src, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.NewFSError("mkdir", filepath.Dir(dst), err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return errors.NewFSError("create", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.NewFSError("copy", dst, err)
	}
	return errors.NewFSError("close", dst, out.Close())
}
