package config

import (
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
)

var dangerousChars = []string{";", "&", "|", "$", "`", "<", ">", "\"", "'"}

// Validate checks configuration values for security and correctness. The
// first problem found is returned as an *errors.ConfigError.
func Validate(cfg Config) error {
	if err := validatePaths(cfg.Paths); err != nil {
		return err
	}
	if err := validateBundle(cfg.Bundle); err != nil {
		return err
	}
	if err := validateStyle(cfg.Style); err != nil {
		return err
	}
	if err := validateInject(cfg.Inject); err != nil {
		return err
	}
	if err := validateServer(cfg.Server); err != nil {
		return err
	}
	if cfg.Watch.Debounce < 0 {
		return errors.NewConfigError("watch.debounce", "must not be negative")
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return errors.NewConfigError("log.level", "%v", err)
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return errors.NewConfigError("log.format", "unsupported format %q (text, json)", cfg.Log.Format)
	}
	return nil
}

func validatePaths(p PathsConfig) error {
	if err := validatePath("paths.source", p.Source); err != nil {
		return err
	}
	if err := validatePath("paths.public", p.Public); err != nil {
		return err
	}

	src := filepath.Clean(p.Source)
	pub := filepath.Clean(p.Public)
	if pub == "." || pub == string(filepath.Separator) {
		return errors.NewConfigError("paths.public", "refusing to use %q as the public root", p.Public)
	}
	if src == pub {
		return errors.NewConfigError("paths.public", "must differ from paths.source")
	}
	if within(src, pub) {
		return errors.NewConfigError("paths.public", "%q contains the source root %q", p.Public, p.Source)
	}
	return nil
}

// within reports whether child is inside (or equal to) parent, lexically.
func within(child, parent string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (!hasParentSegment(rel) && !filepath.IsAbs(rel))
}

// hasParentSegment reports whether p has a ".." path element. Names that
// merely contain two dots, like "my..assets", are allowed.
func hasParentSegment(p string) bool {
	for _, seg := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}

func validatePath(field, path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.NewConfigError(field, "empty path")
	}
	clean := filepath.Clean(path)
	if hasParentSegment(clean) {
		return errors.NewConfigError(field, "path contains traversal: %s", path)
	}
	for _, char := range dangerousChars {
		if strings.Contains(clean, char) {
			return errors.NewConfigError(field, "path contains dangerous character: %s", char)
		}
	}
	return nil
}

func validateBundle(b BundleConfig) error {
	name := strings.TrimSpace(b.ScriptName)
	if name == "" {
		return errors.NewConfigError("bundle.script_name", "empty bundle name")
	}
	if strings.ContainsAny(name, `/\`) {
		return errors.NewConfigError("bundle.script_name", "must be a file name, got %q", b.ScriptName)
	}
	return nil
}

func validateStyle(s StyleConfig) error {
	switch s.Compiler {
	case CompilerDartSass, CompilerCSS:
	default:
		return errors.NewConfigError("style.compiler", "unsupported compiler %q (%s, %s)",
			s.Compiler, CompilerDartSass, CompilerCSS)
	}
	for _, p := range s.IncludePaths {
		if strings.TrimSpace(p) == "" {
			return errors.NewConfigError("style.include_paths", "empty include path")
		}
	}
	return nil
}

func validateInject(i InjectConfig) error {
	if strings.TrimSpace(i.HeaderTag) == "" {
		return errors.NewConfigError("inject.header_tag", "empty marker")
	}
	if strings.TrimSpace(i.FooterTag) == "" {
		return errors.NewConfigError("inject.footer_tag", "empty marker")
	}
	if strings.TrimSpace(i.EndTag) == "" {
		return errors.NewConfigError("inject.end_tag", "empty marker")
	}
	if i.HeaderTag == i.FooterTag {
		return errors.NewConfigError("inject.footer_tag", "must differ from inject.header_tag")
	}
	if i.EndTag == i.HeaderTag || i.EndTag == i.FooterTag {
		return errors.NewConfigError("inject.end_tag", "must differ from the start markers")
	}
	for _, ref := range i.HeaderStyles {
		if strings.TrimSpace(ref) == "" {
			return errors.NewConfigError("inject.header_styles", "empty reference")
		}
	}
	for _, ref := range i.FooterScripts {
		if strings.TrimSpace(ref) == "" {
			return errors.NewConfigError("inject.footer_scripts", "empty reference")
		}
	}
	return nil
}

func validateServer(s ServerConfig) error {
	// 0 lets the OS pick a port, which tests rely on.
	if s.Port < 0 || s.Port > 65535 {
		return errors.NewConfigError("server.port", "port %d is not in valid range 0-65535", s.Port)
	}
	for _, char := range append(dangerousChars, "(", ")", "\\", " ") {
		if strings.Contains(s.Host, char) {
			return errors.NewConfigError("server.host", "host contains dangerous character: %q", char)
		}
	}
	if strings.TrimSpace(s.DefaultFile) == "" {
		return errors.NewConfigError("server.default_file", "empty default document")
	}
	if hasParentSegment(filepath.Clean(s.DefaultFile)) {
		return errors.NewConfigError("server.default_file", "path contains traversal: %s", s.DefaultFile)
	}
	return nil
}
