// Package ui serves the embedded rig preview page.
package ui

import (
	_ "embed"
	"net/http"
)

//go:embed preview.html
var previewPage []byte

// Handler serves the preview page at the root path and redirects anything else to the API
// docs.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "/index.html" {
			http.Redirect(w, r, "/docs", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(previewPage)
	})
}
