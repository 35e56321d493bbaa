// Package transform wraps the third-party file transformers used by the
// pipeline tasks: a style compiler, a script minifier and CSS/HTML
// minifiers.
//
// Every transformer takes source bytes and returns output bytes; malformed
// input is reported as *errors.TransformError with the file and, when the
// underlying parser knows it, the line and column.
package transform

import (
	"context"
	"regexp"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/parse/v2"

	"github.com/conneroisu/sitepipe/internal/errors"
)

// Media types registered on the minifier.
const (
	MediaCSS  = "text/css"
	MediaJS   = "application/javascript"
	MediaHTML = "text/html"
)

var jsMediaPattern = regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`)

// Transformer converts one source file.
type Transformer interface {
	Transform(ctx context.Context, file string, src []byte) ([]byte, error)
}

// TransformerFunc adapts a function to Transformer.
type TransformerFunc func(ctx context.Context, file string, src []byte) ([]byte, error)

func (f TransformerFunc) Transform(ctx context.Context, file string, src []byte) ([]byte, error) {
	return f(ctx, file, src)
}

// Minifier minifies CSS and HTML. Inline <style> and <script> blocks in
// markup are minified too. A Minifier is safe for concurrent use.
type Minifier struct {
	m *minify.M
}

// NewMinifier configures the minifiers. HTML keeps whitespace, comments,
// document and end tags, quotes and default attribute values: only
// redundant whitespace is collapsed. Comments must survive because the
// injection markers are comments.
func NewMinifier() *Minifier {
	m := minify.New()
	m.Add(MediaCSS, &css.Minifier{})
	m.AddRegexp(jsMediaPattern, &js.Minifier{})
	m.Add(MediaHTML, &html.Minifier{
		KeepComments:        true,
		KeepDefaultAttrVals: true,
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepQuotes:          true,
		KeepWhitespace:      true,
	})
	return &Minifier{m: m}
}

// CSS returns a Transformer compressing stylesheets.
func (mn *Minifier) CSS() Transformer { return mn.forMedia("css", MediaCSS) }

// HTML returns a Transformer minifying markup.
func (mn *Minifier) HTML() Transformer { return mn.forMedia("html", MediaHTML) }

func (mn *Minifier) forMedia(task, mediatype string) Transformer {
	return TransformerFunc(func(ctx context.Context, file string, src []byte) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := mn.m.Bytes(mediatype, src)
		if err != nil {
			return nil, toTransformError(task, file, err)
		}
		return out, nil
	})
}

func toTransformError(task, file string, err error) error {
	te := &errors.TransformError{Task: task, File: file, Message: err.Error(), Cause: err}
	if perr, ok := err.(*parse.Error); ok {
		te.Line = perr.Line
		te.Column = perr.Column
		te.Message = perr.Message
	}
	return te
}
