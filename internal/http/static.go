package httpx

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/correlation"
)

// Regex to match content-hashed filenames including optional .map (e.g., app.abc123de.js, index-DfK3a9Qz.css).
var hashedFilePattern = regexp.MustCompile(`[.-][A-Za-z0-9_]{8,}\.(?:js|css)(?:\.map)?$`) //nolint:gochecknoglobals // compiled once

// frontendHandler serves a built single-page frontend from dir. Files under /static/
// are served directly; any other page path gets index.html so client-side routing works.
type frontendHandler struct {
	dir    string
	assets http.Handler
}

func newFrontendHandler(dir string) *frontendHandler {
	return &frontendHandler{
		dir:    dir,
		assets: staticWithCacheHeaders(http.FileServer(http.Dir(dir))),
	}
}

func (h *frontendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if strings.HasPrefix(r.URL.Path, "/static/") || r.URL.Path == "/favicon.ico" {
		h.assets.ServeHTTP(w, r)
		return
	}
	if ext := path.Ext(r.URL.Path); ext != "" && ext != ".html" {
		http.NotFound(w, r)
		return
	}

	index := filepath.Join(h.dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, index)
}

// staticWithCacheHeaders wraps a static file handler to add appropriate cache headers.
func staticWithCacheHeaders(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hashedFilePattern.MatchString(r.URL.Path) {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			w.Header().Set("Cache-Control", "no-cache")
		}
		handler.ServeHTTP(w, r)
	})
}

// apiNotFound answers unknown /api paths with an envelope instead of a text 404.
func apiNotFound(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, Envelope{
		OK:            false,
		Error:         &ErrorBody{Code: "NOT_FOUND", Message: "Not found"},
		CorrelationID: correlation.FromContext(r.Context()),
	})
}
