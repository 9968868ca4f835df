package handler

import (
	_ "embed"
	"net/http"
)

//go:embed static/index.html
var indexPage []byte

// NewIndexHandler serves the single-page dashboard.
func NewIndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		w.Write(indexPage)
	}
}
