package tasks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/transform"
)

const indexHTML = `<!DOCTYPE html>
<html>
  <head>
    <title>Test</title>
    <!-- inject:header -->
    <!-- endinject -->
  </head>
  <body>
    <h1>Hello</h1>
    <!-- inject:footer -->
    <!-- endinject -->
  </body>
</html>
`

// project is a throwaway source tree with the default layout.
type project struct {
	root string
	cfg  config.Config
}

func newProject(t *testing.T) *project {
	t.Helper()
	root := t.TempDir()

	cfg := config.Default()
	cfg.Paths.Source = filepath.Join(root, "src")
	cfg.Paths.Public = filepath.Join(root, "public")
	cfg.Style.Compiler = config.CompilerCSS
	cfg.Inject.HeaderStyles = []string{
		filepath.Join(root, "public", "vendor", "css", "bootstrap.min.css"),
		filepath.Join(root, "public", "css", "style.min.css"),
	}
	cfg.Inject.FooterScripts = []string{
		filepath.Join(root, "public", "vendor", "js", "jquery.min.js"),
		filepath.Join(root, "public", "js", "scripts.min.js"),
	}

	p := &project{root: root, cfg: cfg}
	p.write(t, "src/sass/style.css", "body {\n  color: red;\n}\n")
	p.write(t, "src/js/a.js", "var first = 1;\n")
	p.write(t, "src/js/b.js", "function second(x) {\n  return x * 2;\n}\n")
	p.write(t, "src/html/index.html", indexHTML)
	p.write(t, "src/vendor/js/jquery.min.js", "/*! jquery */window.$=function(){};")
	p.write(t, "src/vendor/css/bootstrap.min.css", ".btn{display:inline-block}")
	return p
}

func (p *project) path(rel string) string {
	return filepath.Join(p.root, filepath.FromSlash(rel))
}

func (p *project) write(t *testing.T, rel, content string) {
	t.Helper()
	full := p.path(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func (p *project) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(p.path(rel))
	require.NoError(t, err)
	return string(data)
}

func (p *project) tasks() *Set {
	return NewSet(p.cfg, transform.PlainCSS{}, logging.Discard())
}
