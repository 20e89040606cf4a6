package server

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var mimeTypes = map[string]string{
	".html": "text/html",
	".js":   "text/javascript",
	".css":  "text/css",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
}

// contentType maps a file extension to the Content-Type served for it.
func contentType(name string) string {
	if ct, ok := mimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

type staticHandler struct {
	root string
	log  *zap.Logger
}

// NewStaticHandler serves files below root. "/" maps to index.html.
func NewStaticHandler(root string, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &staticHandler{root: root, log: log}
}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Cleaning a rooted path drops any ".." that would escape root.
	name := path.Clean("/" + r.URL.Path)
	if name == "/" {
		name = "/index.html"
	}

	content, err := os.ReadFile(filepath.Join(h.root, filepath.FromSlash(name)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		h.log.Warn("Failed to read static file", zap.String("path", name), zap.Error(err))
		http.Error(w, "Server error: "+errorCode(err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType(name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

// errorCode strips the file path from filesystem errors.
func errorCode(err error) string {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err.Error()
	}
	return err.Error()
}
