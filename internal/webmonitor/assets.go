package webmonitor

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// builtinAssets are served when no on-disk override exists.
var builtinAssets = map[string]struct {
	contentType string
	body        string
}{
	"console.css": {"text/css; charset=utf-8", consoleCSS},
	"console.js":  {"text/javascript; charset=utf-8", consoleJS},
}

type assetHandler struct {
	assetsDir string
	modTime   time.Time
}

func newAssetHandler(assetsDir string) *assetHandler {
	return &assetHandler{assetsDir: assetsDir, modTime: time.Now()}
}

func (h *assetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filename := filepath.Base(r.URL.Path)
	if h.assetsDir != "" {
		if path := filepath.Join(h.assetsDir, filename); fileExists(path) {
			http.ServeFile(w, r, path)
			return
		}
	}

	asset, ok := builtinAssets[filename]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", asset.contentType)
	http.ServeContent(w, r, filename, h.modTime, strings.NewReader(asset.body))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
