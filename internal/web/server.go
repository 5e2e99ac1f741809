// Package web is the read-only HTTP facade: message history for the browser
// client, static files, and the metrics endpoint. It only reads from the
// chat hub's message log.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/horrygame/anonmsg/internal/chat"
)

// Handler holds the facade's dependencies: the message log and the static
// file root.
type Handler struct {
	log    *chat.MessageLog
	root   string
	logger *slog.Logger
}

func NewHandler(log *chat.MessageLog, root string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if root == "" {
		root = "."
	}
	return &Handler{log: log, root: root, logger: logger}
}

// Routes builds the router for the facade.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)
	r.Get("/api/messages", h.handleMessages)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/*", h.handleStatic)
	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.Info("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// handleMessages serves GET /api/messages?since_id=N: all messages with id
// strictly greater than N. A missing or unparsable since_id means 0.
func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	sinceID, _ := strconv.ParseInt(r.URL.Query().Get("since_id"), 10, 64)
	msgs := h.log.Since(sinceID)
	if msgs == nil {
		msgs = []chat.Message{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(msgs); err != nil {
		h.logger.Error("encode messages", "error", err)
	}
}

// handleStatic serves files from the configured root, with "/" mapped to
// index.html. Content type is inferred from the extension by ServeFile.
func (h *Handler) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path
	if name == "/" {
		name = "/index.html"
	}
	path := filepath.Join(h.root, filepath.Clean(name))
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

// NewServer wraps the handler in an http.Server with conservative timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
