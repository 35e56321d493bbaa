package server

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// fileHandler serves the public root. Directories resolve to their
// index.html and "/" to the configured default document.
type fileHandler struct {
	root        string
	defaultFile string
	liveReload  bool
	notFound    http.Handler
}

func (h *fileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	full, ok := h.resolve(r.URL.Path)
	if !ok {
		h.notFound.ServeHTTP(w, r)
		return
	}

	info, err := os.Stat(full)
	if err == nil && info.IsDir() {
		if !strings.HasSuffix(r.URL.Path, "/") {
			http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}
		full = filepath.Join(full, "index.html")
		info, err = os.Stat(full)
	}
	if err != nil || info.IsDir() {
		h.notFound.ServeHTTP(w, r)
		return
	}

	f, err := os.Open(full)
	if err != nil {
		h.notFound.ServeHTTP(w, r)
		return
	}
	defer f.Close()

	var content io.ReadSeeker = f
	if h.liveReload && isHTML(full) {
		page, err := io.ReadAll(f)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		content = bytes.NewReader(injectClient(page))
	}

	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, info.Name(), info.ModTime(), content)
}

// resolve maps a request path to a file under root. It fails for paths
// with ".." segments, which could otherwise step outside the root.
func (h *fileHandler) resolve(urlPath string) (string, bool) {
	if containsDotDot(urlPath) || strings.ContainsRune(urlPath, 0) {
		return "", false
	}
	clean := path.Clean("/" + urlPath)
	if clean == "/" {
		clean = "/" + strings.TrimPrefix(filepath.ToSlash(h.defaultFile), "/")
	}

	full := filepath.Join(h.root, filepath.FromSlash(clean))
	rel, err := filepath.Rel(h.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

func containsDotDot(v string) bool {
	if !strings.Contains(v, "..") {
		return false
	}
	for _, seg := range strings.FieldsFunc(v, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}

func isHTML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".html" || ext == ".htm"
}
