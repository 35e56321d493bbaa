package transform

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bep/godartsass/v2"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
)

// StyleOutput is the result of compiling one style source.
type StyleOutput struct {
	CSS       []byte
	SourceMap []byte
}

// StyleCompiler turns a style source into CSS. Output is compressed by the
// CSS minifier afterwards, so a compiler only needs to produce valid CSS.
type StyleCompiler interface {
	Compile(ctx context.Context, file string, src []byte) (StyleOutput, error)
	Close() error
}

// NewStyleCompiler returns the compiler selected by cfg.Compiler.
func NewStyleCompiler(cfg config.StyleConfig, logger logging.Logger) (StyleCompiler, error) {
	switch cfg.Compiler {
	case config.CompilerCSS:
		return PlainCSS{}, nil
	case config.CompilerDartSass:
		return NewDartSass(cfg, logger), nil
	default:
		return nil, errors.NewConfigError("style.compiler", "unsupported compiler %q", cfg.Compiler)
	}
}

// PlainCSS treats sources as plain CSS and passes them through unchanged.
type PlainCSS struct{}

func (PlainCSS) Compile(ctx context.Context, file string, src []byte) (StyleOutput, error) {
	if err := ctx.Err(); err != nil {
		return StyleOutput{}, err
	}
	return StyleOutput{CSS: src}, nil
}

func (PlainCSS) Close() error { return nil }

// DartSass compiles Sass through the Dart Sass embedded protocol. The sass
// process is started on first use so that commands that never compile
// styles do not need the binary.
type DartSass struct {
	binary       string
	includePaths []string
	sourceMap    bool
	logger       logging.Logger

	mutex      sync.Mutex
	transpiler *godartsass.Transpiler
}

// NewDartSass creates a lazily started Dart Sass compiler.
func NewDartSass(cfg config.StyleConfig, logger logging.Logger) *DartSass {
	binary := cfg.DartSassBinary
	if binary == "" {
		binary = "sass"
	}
	return &DartSass{
		binary:       binary,
		includePaths: append([]string(nil), cfg.IncludePaths...),
		sourceMap:    cfg.SourceMap,
		logger:       logger.WithComponent("dart-sass"),
	}
}

func (d *DartSass) start() (*godartsass.Transpiler, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.transpiler != nil && !d.transpiler.IsShutDown() {
		return d.transpiler, nil
	}

	t, err := godartsass.Start(godartsass.Options{
		DartSassEmbeddedFilename: d.binary,
		Timeout:                  30 * time.Second,
		LogEventHandler: func(e godartsass.LogEvent) {
			d.logger.Warn(context.Background(), nil, e.Message)
		},
	})
	if err != nil {
		return nil, errors.NewConfigError("style.dart_sass_binary", "starting %s: %v", d.binary, err)
	}
	d.transpiler = t
	return t, nil
}

// Compile compiles file. Partials are resolved relative to the file's
// directory and the configured include paths.
func (d *DartSass) Compile(ctx context.Context, file string, src []byte) (StyleOutput, error) {
	if err := ctx.Err(); err != nil {
		return StyleOutput{}, err
	}

	t, err := d.start()
	if err != nil {
		return StyleOutput{}, err
	}

	abs, err := filepath.Abs(file)
	if err != nil {
		return StyleOutput{}, errors.NewFSError("resolve", file, err)
	}

	res, err := t.Execute(godartsass.Args{
		Source:          string(src),
		URL:             fileURL(abs),
		OutputStyle:     godartsass.OutputStyleCompressed,
		SourceSyntax:    syntaxFor(file),
		IncludePaths:    append([]string{filepath.Dir(abs)}, d.includePaths...),
		EnableSourceMap: d.sourceMap,
	})
	if err != nil {
		return StyleOutput{}, &errors.TransformError{
			Task:    "sass",
			File:    file,
			Message: strings.TrimSpace(err.Error()),
			Cause:   err,
		}
	}

	out := StyleOutput{CSS: []byte(res.CSS)}
	if d.sourceMap && res.SourceMap != "" {
		out.SourceMap = []byte(res.SourceMap)
	}
	return out, nil
}

// Close stops the sass process if it was started.
func (d *DartSass) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.transpiler == nil {
		return nil
	}
	err := d.transpiler.Close()
	d.transpiler = nil
	if err != nil {
		return fmt.Errorf("stopping dart sass: %w", err)
	}
	return nil
}

func syntaxFor(file string) godartsass.SourceSyntax {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".sass":
		return godartsass.SourceSyntaxSASS
	case ".css":
		return godartsass.SourceSyntaxCSS
	default:
		return godartsass.SourceSyntaxSCSS
	}
}

func fileURL(abs string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	return u.String()
}
