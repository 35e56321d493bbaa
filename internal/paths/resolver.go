// Package paths maps resource categories to their source globs and
// destination directories.
package paths

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/errors"
)

// Category is one of the resource kinds the pipeline processes.
type Category string

const (
	Style  Category = "style"
	Script Category = "script"
	Markup Category = "markup"
	Vendor Category = "vendor"
)

// Categories lists every category in build order.
var Categories = []Category{Vendor, Markup, Style, Script}

// Mode selects the source or destination side of a category.
type Mode int

const (
	Source Mode = iota
	Destination
)

func (m Mode) String() string {
	switch m {
	case Source:
		return "source"
	case Destination:
		return "destination"
	default:
		return "unknown"
	}
}

type layout struct {
	srcDir  string // relative to the source root
	pattern string // glob below srcDir
	destDir string // relative to the public root; empty means the root
}

var layouts = map[Category]layout{
	Style:  {srcDir: "sass", pattern: "*", destDir: "css"},
	Script: {srcDir: "js", pattern: "*", destDir: "js"},
	Markup: {srcDir: "html", pattern: "*", destDir: "html"},
	// The vendor tree keeps its relative path, so it lands at <public>/vendor.
	Vendor: {srcDir: "vendor", pattern: "**/*.*", destDir: ""},
}

// ParseCategory converts a name to a Category.
func ParseCategory(name string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := layouts[c]; !ok {
		return "", errors.NewConfigError("category", "unknown category %q", name)
	}
	return c, nil
}

// Resolver resolves category paths against the configured roots. It holds
// no state beyond the two roots and is safe for concurrent use.
type Resolver struct {
	sourceRoot string
	publicRoot string
}

// NewResolver creates a resolver for the given roots.
func NewResolver(cfg config.PathsConfig) *Resolver {
	return &Resolver{
		sourceRoot: filepath.Clean(cfg.Source),
		publicRoot: filepath.Clean(cfg.Public),
	}
}

// SourceRoot returns the cleaned source root.
func (r *Resolver) SourceRoot() string { return r.sourceRoot }

// PublicRoot returns the cleaned public root.
func (r *Resolver) PublicRoot() string { return r.publicRoot }

// Resolve returns the source glob (mode Source) or the destination
// directory (mode Destination) for category.
func (r *Resolver) Resolve(category Category, mode Mode) (string, error) {
	l, ok := layouts[category]
	if !ok {
		return "", errors.NewConfigError("category", "unknown category %q", category)
	}

	switch mode {
	case Source:
		return filepath.Join(r.sourceRoot, l.srcDir, filepath.FromSlash(l.pattern)), nil
	case Destination:
		if l.destDir == "" {
			return r.publicRoot, nil
		}
		return filepath.Join(r.publicRoot, l.destDir), nil
	default:
		return "", errors.NewConfigError("mode", "unknown mode %d", int(mode))
	}
}

// Base returns the directory the category's source glob is rooted at.
func (r *Resolver) Base(category Category) (string, error) {
	l, ok := layouts[category]
	if !ok {
		return "", errors.NewConfigError("category", "unknown category %q", category)
	}
	return filepath.Join(r.sourceRoot, l.srcDir), nil
}

// Validate checks every category glob. It is called once at startup; a
// malformed glob is a configuration error.
func (r *Resolver) Validate() error {
	for _, c := range Categories {
		glob, err := r.Resolve(c, Source)
		if err != nil {
			return err
		}
		if !doublestar.ValidatePathPattern(glob) {
			return errors.NewConfigError("paths.source", "malformed glob %q for %s", glob, c)
		}
	}
	return nil
}

// MustResolve is Resolve for the fixed category set, where an error is a
// programming mistake.
func (r *Resolver) MustResolve(category Category, mode Mode) string {
	p, err := r.Resolve(category, mode)
	if err != nil {
		panic(fmt.Sprintf("paths: %v", err))
	}
	return p
}
