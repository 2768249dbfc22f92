package server

import (
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// SPAHandler serves the built frontend. Existing files are served as is;
// unknown extensionless paths get index.html so client-side routes work on
// reload; unknown paths with an extension are 404.
type SPAHandler struct {
	fileServer http.Handler
	filesystem fs.FS
}

// NewSPAHandler serves files from the dir subtree of fsys ("." for all of it).
func NewSPAHandler(fsys fs.FS, dir string) (*SPAHandler, error) {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create sub filesystem: %w", err)
	}
	return &SPAHandler{
		fileServer: http.FileServer(http.FS(sub)),
		filesystem: sub,
	}, nil
}

func (h *SPAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if name == "" {
		h.serveIndex(w, r)
		return
	}

	if info, err := fs.Stat(h.filesystem, name); err == nil && !info.IsDir() {
		h.fileServer.ServeHTTP(w, r)
		return
	}

	// r.URL.Path is already decoded, so %2Ecss counts as an extension.
	if path.Ext(name) != "" {
		http.NotFound(w, r)
		return
	}

	h.serveIndex(w, r)
}

// serveIndex rewrites to "/" so the file server answers with index.html
// instead of redirecting /index.html to the directory. Without an index the
// answer is 404, never a directory listing.
func (h *SPAHandler) serveIndex(w http.ResponseWriter, r *http.Request) {
	if _, err := fs.Stat(h.filesystem, "index.html"); err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	r2 := r.Clone(r.Context())
	r2.URL.Path = "/"
	r2.URL.RawPath = ""
	h.fileServer.ServeHTTP(w, r2)
}
