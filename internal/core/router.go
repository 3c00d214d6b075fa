package core

import (
	"net/http"
	"strings"
)

// Handler returns an http.Handler serving the index page, the stylesheet and
// the random image API. Any other path is a plain 404.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s.handleIndex(ctx, w, r)
	})
	mux.HandleFunc("GET /style.css", s.handleStyle)

	// Everything else, including /api and anything below it.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api") {
			ctx := r.Context()
			s.handleAPI(ctx, w, r)
			return
		}
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	// Add middleware
	handler := Recoverer(mux)
	handler = LogRequest(handler)
	handler = RequestID(handler)
	return handler
}
