package transform

import (
	"context"
	"encoding/json"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bep/godartsass/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
)

func TestMinifyCSS(t *testing.T) {
	out, err := NewMinifier().CSS().Transform(context.Background(), "style.css",
		[]byte("body {\n  color: red;\n}\n"))
	require.NoError(t, err)
	assert.Equal(t, "body{color:red}", string(out))
}

func TestMinifyScript(t *testing.T) {
	src := "// add two numbers\nfunction add(first, second) {\n  return first + second;\n}\n"
	out, err := NewScriptMinifier(false).Minify(context.Background(), "add.js", "add.js", []byte(src))
	require.NoError(t, err)

	code := string(out.Code)
	assert.Contains(t, code, "function add(", "top-level names are kept")
	assert.NotContains(t, code, "add two numbers")
	assert.NotContains(t, code, "first")
	assert.Less(t, len(code), len(src))
	assert.Nil(t, out.SourceMap)
}

func TestMinifyScriptSourceMap(t *testing.T) {
	out, err := NewScriptMinifier(true).Minify(context.Background(), "/src/js/a.js", "../../src/js/a.js",
		[]byte("var answer = 40 + 2;\n"))
	require.NoError(t, err)
	require.NotEmpty(t, out.SourceMap)

	var m struct {
		Version        int      `json:"version"`
		Sources        []string `json:"sources"`
		SourcesContent []string `json:"sourcesContent"`
		Mappings       string   `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal(out.SourceMap, &m))
	assert.Equal(t, 3, m.Version)
	assert.Equal(t, []string{"../../src/js/a.js"}, m.Sources)
	assert.Equal(t, []string{"var answer = 40 + 2;\n"}, m.SourcesContent)
	assert.NotEmpty(t, m.Mappings)
	assert.NotContains(t, string(out.Code), "sourceMappingURL", "the bundle owns the map reference")
}

func TestMinifyScriptSyntaxError(t *testing.T) {
	_, err := NewScriptMinifier(false).Minify(context.Background(), "broken.js", "broken.js",
		[]byte("var ok = 1;\nfunction (a, {\n"))
	require.Error(t, err)

	te, ok := errors.AsTransform(err)
	require.True(t, ok)
	assert.Equal(t, "js", te.Task)
	assert.Equal(t, "broken.js", te.File)
	assert.Equal(t, 2, te.Line)
	assert.Positive(t, te.Column)
	assert.NotEmpty(t, te.Message)
}

func TestMinifyScriptCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScriptMinifier(false).Minify(ctx, "a.js", "a.js", []byte("var a;"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndexMap(t *testing.T) {
	m := NewIndexMap("scripts.min.js")
	m.Add(0, []byte(`{"version":3,"sources":["a.js"],"mappings":"AAAA"}`))
	m.Add(1, nil)
	m.Add(2, []byte(`{"version":3,"sources":["b.js"],"mappings":"AAAA"}`+"\n"))
	assert.Equal(t, 2, m.Len(), "parts without a map are skipped")

	data, err := m.Marshal()
	require.NoError(t, err)

	var decoded struct {
		Version  int    `json:"version"`
		File     string `json:"file"`
		Sections []struct {
			Offset struct {
				Line   int `json:"line"`
				Column int `json:"column"`
			} `json:"offset"`
			Map struct {
				Sources []string `json:"sources"`
			} `json:"map"`
		} `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 3, decoded.Version)
	assert.Equal(t, "scripts.min.js", decoded.File)
	require.Len(t, decoded.Sections, 2)
	assert.Equal(t, 0, decoded.Sections[0].Offset.Line)
	assert.Equal(t, 2, decoded.Sections[1].Offset.Line)
	assert.Equal(t, []string{"b.js"}, decoded.Sections[1].Map.Sources)
}

func TestMinifyHTMLInlineScript(t *testing.T) {
	src := "<html><body><script>\n  var  greeting = \"hi\" ;\n</script></body></html>"
	out, err := NewMinifier().HTML().Transform(context.Background(), "inline.html", []byte(src))
	require.NoError(t, err)
	assert.Contains(t, string(out), `var greeting="hi"`)
	assert.NotContains(t, string(out), "var  greeting")
}

func TestMinifyHTMLKeepsMarkersAndWhitespace(t *testing.T) {
	src := `<!DOCTYPE html>
<html>
  <head>
    <!-- inject:header -->
    <!-- endinject -->
  </head>
  <body>
    <p>Hello    <b>world</b></p>
    <!-- inject:footer -->
    <!-- endinject -->
  </body>
</html>
`
	out, err := NewMinifier().HTML().Transform(context.Background(), "index.html", []byte(src))
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, "<!-- inject:header -->")
	assert.Contains(t, s, "<!-- inject:footer -->")
	assert.Contains(t, s, "<!-- endinject -->")
	assert.Contains(t, s, "</body>")
	assert.Contains(t, s, "Hello <b>world</b>", "whitespace between inline elements is kept")
	assert.Less(t, len(out), len(src))
}

func TestTransformerHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMinifier().CSS().Transform(ctx, "a.css", []byte("a{}"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewStyleCompiler(t *testing.T) {
	c, err := NewStyleCompiler(config.StyleConfig{Compiler: config.CompilerCSS}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, PlainCSS{}, c)

	c, err = NewStyleCompiler(config.StyleConfig{Compiler: config.CompilerDartSass}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &DartSass{}, c)
	assert.NoError(t, c.Close(), "closing a compiler that never started is a no-op")

	_, err = NewStyleCompiler(config.StyleConfig{Compiler: "less"}, logging.Discard())
	assert.True(t, errors.IsConfig(err))
}

func TestPlainCSSPassThrough(t *testing.T) {
	out, err := PlainCSS{}.Compile(context.Background(), "a.css", []byte("a { b: c }"))
	require.NoError(t, err)
	assert.Equal(t, "a { b: c }", string(out.CSS))
	assert.Nil(t, out.SourceMap)
}

func TestSyntaxFor(t *testing.T) {
	assert.Equal(t, godartsass.SourceSyntaxSCSS, syntaxFor("a.scss"))
	assert.Equal(t, godartsass.SourceSyntaxSASS, syntaxFor("a.SASS"))
	assert.Equal(t, godartsass.SourceSyntaxCSS, syntaxFor("a.css"))
}

func TestFileURL(t *testing.T) {
	abs, err := filepath.Abs("style.scss")
	require.NoError(t, err)
	u := fileURL(abs)
	assert.True(t, strings.HasPrefix(u, "file:///"), u)
	assert.True(t, strings.HasSuffix(u, "/style.scss"), u)
}

func TestDartSassCompile(t *testing.T) {
	if _, err := exec.LookPath("sass"); err != nil {
		t.Skip("dart sass not installed")
	}

	dir := t.TempDir()
	compiler := NewDartSass(config.StyleConfig{}, logging.Discard())
	defer compiler.Close()

	out, err := compiler.Compile(context.Background(), filepath.Join(dir, "style.scss"),
		[]byte("$c: red;\n.a { .b { color: $c; } }\n"))
	require.NoError(t, err)
	assert.Contains(t, string(out.CSS), ".a .b{color:red}")

	_, err = compiler.Compile(context.Background(), filepath.Join(dir, "bad.scss"), []byte(".a { color: ; "))
	te, ok := errors.AsTransform(err)
	require.True(t, ok)
	assert.Equal(t, "sass", te.Task)
}
