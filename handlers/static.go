package handlers

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
)

//go:embed static/*
var staticAssets embed.FS

// StaticHandler serves the embedded dashboard. Unknown paths fall back to
// index.html so the client-side tab routing keeps working on reload; /api
// paths never fall through to the page.
type StaticHandler struct {
	assets     fs.FS
	fileServer http.Handler
}

// NewStaticHandler creates the handler over the embedded assets.
func NewStaticHandler() *StaticHandler {
	assets, err := fs.Sub(staticAssets, "static")
	if err != nil {
		panic("failed to get static subdirectory: " + err.Error())
	}
	return &StaticHandler{
		assets:     assets,
		fileServer: http.FileServer(http.FS(assets)),
	}
}

func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "API endpoint not found"})
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == "" {
		path = "index.html"
	}

	if _, err := fs.Stat(h.assets, path); err != nil {
		// SPA fallback.
		index, err := fs.ReadFile(h.assets, "index.html")
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(index)
		return
	}

	if path != "index.html" {
		w.Header().Set("Cache-Control", "public, max-age=86400")
	}
	h.fileServer.ServeHTTP(w, r)
}
