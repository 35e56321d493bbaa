package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/sitepipe/internal/errors"
)

// ScriptOutput is one minified script and, when requested, its source map.
type ScriptOutput struct {
	Code      []byte
	SourceMap []byte
}

// ScriptMinifier minifies scripts with esbuild. Top-level names are kept so
// that files concatenated into one bundle still share globals.
type ScriptMinifier struct {
	sourceMap bool
}

func NewScriptMinifier(sourceMap bool) *ScriptMinifier {
	return &ScriptMinifier{sourceMap: sourceMap}
}

// SourceMaps reports whether Minify produces source maps.
func (s *ScriptMinifier) SourceMaps() bool { return s.sourceMap }

// Minify minifies src. sourceName is the name recorded in the map's
// sources list, usually the path of file relative to the bundle.
func (s *ScriptMinifier) Minify(ctx context.Context, file, sourceName string, src []byte) (ScriptOutput, error) {
	if err := ctx.Err(); err != nil {
		return ScriptOutput{}, err
	}

	opts := api.TransformOptions{
		Loader:            api.LoaderJS,
		Sourcefile:        sourceName,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		LegalComments:     api.LegalCommentsInline,
		LogLevel:          api.LogLevelSilent,
	}
	if s.sourceMap {
		opts.Sourcemap = api.SourceMapExternal
		opts.SourcesContent = api.SourcesContentInclude
	}

	res := api.Transform(string(src), opts)
	if len(res.Errors) > 0 {
		return ScriptOutput{}, scriptError(file, res.Errors)
	}

	out := ScriptOutput{Code: res.Code}
	if s.sourceMap {
		out.SourceMap = res.Map
	}
	return out, nil
}

func scriptError(file string, msgs []api.Message) error {
	first := msgs[0]
	te := &errors.TransformError{Task: "js", File: file, Message: first.Text}
	if first.Location != nil {
		te.Line = first.Location.Line
		te.Column = first.Location.Column + 1
	}
	if len(msgs) > 1 {
		texts := make([]string, 0, len(msgs))
		for _, m := range msgs {
			texts = append(texts, m.Text)
		}
		te.Cause = fmt.Errorf("%s", strings.Join(texts, "; "))
	}
	return te
}

// IndexMap assembles the source maps of concatenated parts into one
// sectioned source map.
type IndexMap struct {
	file     string
	sections []mapSection
}

type mapSection struct {
	Offset struct {
		Line   int `json:"line"`
		Column int `json:"column"`
	} `json:"offset"`
	Map json.RawMessage `json:"map"`
}

func NewIndexMap(file string) *IndexMap {
	return &IndexMap{file: file}
}

// Add registers the map of a part starting at line (zero based) of the
// bundle. Parts must be added in bundle order.
func (m *IndexMap) Add(line int, sourceMap []byte) {
	if len(sourceMap) == 0 {
		return
	}
	var s mapSection
	s.Offset.Line = line
	s.Map = json.RawMessage(sourceMap)
	m.sections = append(m.sections, s)
}

// Len returns the number of sections.
func (m *IndexMap) Len() int { return len(m.sections) }

func (m *IndexMap) Marshal() ([]byte, error) {
	sections := m.sections
	if sections == nil {
		sections = []mapSection{}
	}
	data, err := json.Marshal(struct {
		Version  int          `json:"version"`
		File     string       `json:"file"`
		Sections []mapSection `json:"sections"`
	}{3, m.file, sections})
	if err != nil {
		return nil, fmt.Errorf("encoding source map: %w", err)
	}
	return data, nil
}
