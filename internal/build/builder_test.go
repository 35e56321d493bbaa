package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/tasks"
	"github.com/conneroisu/sitepipe/internal/transform"
)

func newTestBuilder(t *testing.T) (*Builder, string) {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"src/sass/style.css":       "a { color: blue; }",
		"src/js/app.js":            "var x = 1;",
		"src/html/index.html":      "<html><body><!-- inject:footer --><!-- endinject --></body></html>",
		"src/vendor/js/lib.min.js": "var lib;",
	}
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}

	cfg := config.Default()
	cfg.Paths.Source = filepath.Join(root, "src")
	cfg.Paths.Public = filepath.Join(root, "public")
	cfg.Style.Compiler = config.CompilerCSS
	cfg.Inject.HeaderStyles = []string{filepath.Join(root, "public", "css", "style.min.css")}
	cfg.Inject.FooterScripts = []string{
		filepath.Join(root, "public", "vendor", "js", "lib.min.js"),
		filepath.Join(root, "public", "js", "scripts.min.js"),
	}

	set := tasks.NewSet(cfg, transform.PlainCSS{}, logging.Discard())
	return NewBuilder(set, logging.Discard()), root
}

func TestBuilderBuild(t *testing.T) {
	b, root := newTestBuilder(t)
	assert.Nil(t, b.LastReport())

	report, err := b.Build(context.Background())
	require.NoError(t, err)

	names := make([]string, 0, len(report.Steps))
	for _, s := range report.Steps {
		names = append(names, s.Name)
	}
	assert.Equal(t, Order, names)
	assert.Same(t, report, b.LastReport())

	for _, rel := range []string{"css/style.min.css", "js/scripts.min.js", "html/index.html", "vendor/js/lib.min.js"} {
		assert.FileExists(t, filepath.Join(root, "public", filepath.FromSlash(rel)))
	}
	page, err := os.ReadFile(filepath.Join(root, "public", "html", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), `<script src="../js/scripts.min.js"></script>`)
}

func TestBuilderRebuildStartsWithClean(t *testing.T) {
	b, root := newTestBuilder(t)
	stale := filepath.Join(root, "public", "css", "gone.min.css")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))

	report, err := b.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tasks.NameClean, report.Steps[0].Name)
	assert.NoFileExists(t, stale)
}

func TestBuilderTaskOrderingFailure(t *testing.T) {
	b, _ := newTestBuilder(t)

	report, err := b.Task(context.Background(), tasks.NameInject)
	require.Error(t, err)

	var oe *errors.OrderingError
	assert.ErrorAs(t, err, &oe)
	assert.Equal(t, StatusFailed, report.Steps[0].Status)
}

func TestBuilderUnknownTask(t *testing.T) {
	b, _ := newTestBuilder(t)

	_, err := b.Run(context.Background(), "deploy")
	assert.Error(t, err)
	assert.Nil(t, b.LastReport())
}
