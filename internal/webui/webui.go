// Package webui embeds the static movie browser served next to the HTTP API.
package webui

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
	"sync"
)

//go:embed static/*
var staticFS embed.FS

var browserFS = sync.OnceValue(func() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
})

// StaticFS exposes the browser assets rooted at the static directory.
func StaticFS() http.FileSystem {
	return http.FS(browserFS())
}

// Handler serves the browser. Requests under /v1/ never reach it; the API
// routes are registered first. Assets are revalidated on every load so a
// rebuilt binary is picked up without a hard refresh.
func Handler() http.Handler {
	files := http.FileServerFS(browserFS())
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "no-cache")
		files.ServeHTTP(w, r)
	})
}
