package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"randpic/internal/gallery"
	"randpic/internal/ui"
)

// Server serves the index page, the stylesheet and the random image API.
// It keeps no per-request state; everything is read from storage on demand.
type Server struct {
	Config  Config
	gallery *gallery.Gallery
}

// NewServer validates cfg and returns a new Server. A nil storage engine is
// accepted and reported as a configuration error on each request.
func NewServer(cfg Config) (*Server, error) {
	if cfg.PublicURL != "" {
		u, err := url.Parse(cfg.PublicURL)
		if err != nil {
			return nil, fmt.Errorf("parse public url: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("public url %q must include scheme and host", cfg.PublicURL)
		}
	}

	var opts []gallery.Option
	if cfg.RandomSource != nil {
		opts = append(opts, gallery.WithRandomSource(cfg.RandomSource))
	}

	return &Server{
		Config:  cfg,
		gallery: gallery.New(cfg.Engine, cfg.BasePrefix, opts...),
	}, nil
}

// writeJSONError writes {"error": message} with the given status.
func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// statusForError maps a classified gallery error onto an HTTP status.
func statusForError(err error) int {
	switch {
	case errors.Is(err, gallery.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, gallery.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeAPIError reports err as JSON. Classified errors carry a client-safe
// message; anything else is logged and replaced by a generic one.
func writeAPIError(ctx context.Context, w http.ResponseWriter, err error) {
	requestID := RequestIDFromContext(ctx)

	var gErr *gallery.Error
	if errors.As(err, &gErr) {
		status := statusForError(gErr)
		if status >= http.StatusInternalServerError {
			slog.Error("API request failed", "err", err, "request_id", requestID)
		}
		writeJSONError(w, gErr.Message, status)
		return
	}

	slog.Error("API request failed", "err", err, "request_id", requestID)
	writeJSONError(w, genericAPIErrorMessage, http.StatusInternalServerError)
}

// apiBaseURL is the absolute URL of the API endpoint as seen by clients.
func (s *Server) apiBaseURL(r *http.Request) string {
	if s.Config.PublicURL != "" {
		return strings.TrimSuffix(s.Config.PublicURL, "/") + "/api"
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		proto = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
		if proto == "http" || proto == "https" {
			scheme = proto
		}
	}

	return scheme + "://" + r.Host + "/api"
}

// handleIndex implements GET / with the status and usage page.
func (s *Server) handleIndex(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	summary, err := s.gallery.Summarize(ctx)
	if err != nil {
		var gErr *gallery.Error
		if errors.As(err, &gErr) && errors.Is(err, gallery.ErrConfiguration) {
			slog.Error("Index page configuration error", "err", err, "request_id", RequestIDFromContext(ctx))
			msg := "Server configuration error: " + gErr.Message
			if errors.Is(err, gallery.ErrUndeterminedTag) {
				msg = gErr.Message
			}
			http.Error(w, msg, http.StatusInternalServerError)
			return
		}

		slog.Error("Index page failed", "err", err, "request_id", RequestIDFromContext(ctx))
		http.Error(w, genericIndexErrorMessage, http.StatusInternalServerError)
		return
	}

	data := ui.IndexData{
		Tag:        summary.Tag,
		Counts:     summary.Counts,
		Total:      summary.Total,
		APIBaseURL: s.apiBaseURL(r),
		Now:        time.Now(),
	}

	var buf bytes.Buffer
	if err := ui.IndexPage(data).Render(ctx, &buf); err != nil {
		slog.Error("Render index page", "err", err)
		http.Error(w, genericIndexErrorMessage, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Debug("Write index page", "err", err)
	}
}

// handleStyle implements GET /style.css.
func (s *Server) handleStyle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", contentTypeCSS)
	w.Header().Set("Cache-Control", styleCacheControl)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, ui.StyleSheet())
}

// handleAPI implements GET /api[?orientation=...]: it picks a random image
// and streams it back with cache-busting headers.
func (s *Server) handleAPI(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	orientation, err := gallery.ParseOrientation(r.URL.Query().Get("orientation"))
	if err != nil {
		writeAPIError(ctx, w, err)
		return
	}

	tag, err := s.gallery.ResolveTag(ctx)
	if err != nil {
		writeAPIError(ctx, w, err)
		return
	}

	candidate, err := s.gallery.Pick(ctx, tag, orientation)
	if err != nil {
		writeAPIError(ctx, w, err)
		return
	}

	obj, err := s.gallery.Open(ctx, tag, candidate)
	if err != nil {
		writeAPIError(ctx, w, err)
		return
	}
	defer obj.Body.Close()

	h := w.Header()
	obj.WriteHTTPMetadata(h)
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/octet-stream")
	}
	if obj.Size >= 0 {
		h.Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	if etag := obj.HTTPETag(); etag != "" {
		h.Set("ETag", etag)
	}
	h.Set("Cache-Control", noStoreCacheControl)
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")

	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		slog.Error("Stream image", "key", obj.Key, "err", err, "request_id", RequestIDFromContext(ctx))
	}
}
