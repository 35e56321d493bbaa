package tasks

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepipe/internal/errors"
)

func TestStyleTaskSingleRule(t *testing.T) {
	p := newProject(t)

	res, err := p.tasks().Style.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{p.path("public/css/style.min.css")}, res.Outputs)

	entries, err := os.ReadDir(p.path("public/css"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	css := p.read(t, "public/css/style.min.css")
	assert.Equal(t, "body{color:red}", css)
	assert.False(t, regexp.MustCompile(`body\s+\{`).MatchString(css))
}

func TestStyleTaskSkipsPartialsAndOtherFiles(t *testing.T) {
	p := newProject(t)
	p.write(t, "src/sass/_variables.css", "a{b:c}")
	p.write(t, "src/sass/README.md", "# notes")

	res, err := p.tasks().Style.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Outputs, 1)
	assert.NoFileExists(t, p.path("public/css/_variables.min.css"))
	assert.NoFileExists(t, p.path("public/css/README.min.css"))
}

func TestScriptTaskBundlesInOrder(t *testing.T) {
	p := newProject(t)

	set := p.tasks()
	res, err := set.Script.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{p.path("public/js/scripts.min.js"), p.path("public/js/scripts.min.js.map")}, res.Outputs)
	assert.Equal(t, p.path("public/js/scripts.min.js"), set.Script.BundlePath())

	bundle := p.read(t, "public/js/scripts.min.js")
	first := strings.Index(bundle, "first")
	second := strings.Index(bundle, "second")
	require.GreaterOrEqual(t, first, 0)
	require.GreaterOrEqual(t, second, 0)
	assert.Less(t, first, second, "a.js must precede b.js")
	assert.Equal(t, 2, strings.Count(bundle, ";\n"))
	assert.NotContains(t, bundle, "  ")
	assert.True(t, strings.HasSuffix(bundle, "//# sourceMappingURL=scripts.min.js.map\n"))
}

func TestScriptTaskSourceMapSections(t *testing.T) {
	p := newProject(t)

	_, err := p.tasks().Script.Run(context.Background())
	require.NoError(t, err)

	var m struct {
		Version  int    `json:"version"`
		File     string `json:"file"`
		Sections []struct {
			Offset struct {
				Line int `json:"line"`
			} `json:"offset"`
			Map struct {
				Sources []string `json:"sources"`
			} `json:"map"`
		} `json:"sections"`
	}
	require.NoError(t, json.Unmarshal([]byte(p.read(t, "public/js/scripts.min.js.map")), &m))
	assert.Equal(t, 3, m.Version)
	assert.Equal(t, "scripts.min.js", m.File)
	require.Len(t, m.Sections, 2)
	assert.Equal(t, 0, m.Sections[0].Offset.Line)
	assert.Equal(t, 1, m.Sections[1].Offset.Line, "each part starts on its own line")
	assert.Equal(t, []string{"../../src/js/a.js"}, m.Sections[0].Map.Sources)
	assert.Equal(t, []string{"../../src/js/b.js"}, m.Sections[1].Map.Sources)
}

func TestScriptTaskWithoutSourceMaps(t *testing.T) {
	p := newProject(t)
	p.write(t, "public/js/scripts.min.js.map", "{}")
	p.cfg.Bundle.SourceMap = false

	res, err := p.tasks().Script.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{p.path("public/js/scripts.min.js")}, res.Outputs)
	assert.NotContains(t, p.read(t, "public/js/scripts.min.js"), "sourceMappingURL")
	assert.NoFileExists(t, p.path("public/js/scripts.min.js.map"), "a map from an earlier build is removed")
}

func TestScriptTaskCustomBundleName(t *testing.T) {
	p := newProject(t)
	p.cfg.Bundle.ScriptName = "app.js"

	_, err := p.tasks().Script.Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, p.path("public/js/app.js"))
}

func TestScriptTaskNoSources(t *testing.T) {
	p := newProject(t)
	require.NoError(t, os.RemoveAll(p.path("src/js")))

	res, err := p.tasks().Script.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Outputs)
	assert.NoFileExists(t, p.path("public/js/scripts.min.js"))
}

func TestScriptTaskRemovesStaleBundle(t *testing.T) {
	p := newProject(t)
	set := p.tasks()

	_, err := set.Script.Run(context.Background())
	require.NoError(t, err)
	require.FileExists(t, p.path("public/js/scripts.min.js"))

	require.NoError(t, os.Remove(p.path("src/js/a.js")))
	require.NoError(t, os.Remove(p.path("src/js/b.js")))

	res, err := set.Script.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Outputs)
	assert.NoFileExists(t, p.path("public/js/scripts.min.js"))
	assert.NoFileExists(t, p.path("public/js/scripts.min.js.map"))
}

func TestScriptTaskSyntaxError(t *testing.T) {
	p := newProject(t)
	p.write(t, "src/js/c.js", "function (a, {\n")

	res, err := p.tasks().Script.Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, res.Outputs)

	te, ok := errors.AsTransform(err)
	require.True(t, ok)
	assert.Equal(t, p.path("src/js/c.js"), te.File)
}

func TestMarkupTask(t *testing.T) {
	p := newProject(t)

	res, err := p.tasks().Markup.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{p.path("public/html/index.html")}, res.Outputs)

	out := p.read(t, "public/html/index.html")
	assert.Contains(t, out, "<!-- inject:header -->")
	assert.Contains(t, out, "<!-- inject:footer -->")
	assert.Contains(t, out, "<h1>Hello</h1>")
	assert.LessOrEqual(t, len(out), len(indexHTML))
}

func TestVendorTaskCopiesVerbatim(t *testing.T) {
	p := newProject(t)
	p.write(t, "src/vendor/fonts/deep/icons.woff", "\x00\x01binary")
	p.write(t, "src/vendor/LICENSE", "no extension, not matched")

	res, err := p.tasks().Vendor.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Outputs, 3)

	for _, rel := range []string{"vendor/js/jquery.min.js", "vendor/css/bootstrap.min.css", "vendor/fonts/deep/icons.woff"} {
		assert.Equal(t, p.read(t, "src/"+rel), p.read(t, "public/"+rel), rel)
	}
	assert.NoFileExists(t, p.path("public/vendor/LICENSE"))
}

func TestVendorTaskPreservesMode(t *testing.T) {
	p := newProject(t)
	require.NoError(t, os.Chmod(p.path("src/vendor/js/jquery.min.js"), 0o600))

	_, err := p.tasks().Vendor.Run(context.Background())
	require.NoError(t, err)

	info, err := os.Stat(p.path("public/vendor/js/jquery.min.js"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCleanTask(t *testing.T) {
	p := newProject(t)
	set := p.tasks()

	_, err := set.Vendor.Run(context.Background())
	require.NoError(t, err)
	require.DirExists(t, p.path("public"))

	_, err = set.Clean.Run(context.Background())
	require.NoError(t, err)
	assert.NoDirExists(t, p.path("public"))

	_, err = set.Clean.Run(context.Background())
	assert.NoError(t, err, "cleaning a missing root is a no-op")
}

func TestCleanTaskRefusesSourceRoot(t *testing.T) {
	p := newProject(t)
	p.cfg.Paths.Public = p.root

	_, err := p.tasks().Clean.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
	assert.DirExists(t, p.path("src"))
}

func TestSetLookup(t *testing.T) {
	set := newProject(t).tasks()

	for _, name := range []string{NameClean, NameVendor, NameMarkup, NameStyle, NameScript, NameInject} {
		task, ok := set.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, name, task.Name())
	}
	_, ok := set.Lookup("deploy")
	assert.False(t, ok)
}

func TestTasksStopOnCancel(t *testing.T) {
	p := newProject(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.tasks().Vendor.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(p.cfg.Paths.Public, "vendor", "js", "jquery.min.js"))
}
