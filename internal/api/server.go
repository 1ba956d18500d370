// Package api exposes tmux session state over HTTP behind the access
// gate.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/tmux-util/backend/internal/access"
	"github.com/tmux-util/backend/internal/config"
	"github.com/tmux-util/backend/internal/names"
	"github.com/tmux-util/backend/internal/tmux"
)

const version = "1.0.0"

type Server struct {
	cfg     *config.Config
	tmux    *tmux.Client
	names   *names.Store
	started time.Time
}

func NewServer(cfg *config.Config, client *tmux.Client, nameStore *names.Store) *Server {
	return &Server{
		cfg:     cfg,
		tmux:    client,
		names:   nameStore,
		started: time.Now(),
	}
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api", s.handleAPI)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/tmux/sessions", s.handleSessions)
	mux.HandleFunc("/tmux/sessions/", s.handleSessionRoutes)
	mux.HandleFunc("/tmux/create/", s.handleCreate)
	mux.HandleFunc("/tmux/kill/", s.handleKill)
	mux.HandleFunc("/tmux/session-names", s.handleNamesList)
	mux.HandleFunc("/tmux/session-names/", s.handleNameRoutes)
	mux.HandleFunc("/tmux/command", s.handleCommand)
	mux.HandleFunc("/", s.handleNotFound)
}

// Handler returns the full middleware chain: access gate first, then
// security headers, then the routed handlers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	gate := access.NewGate(s.cfg.Access)
	return gate.Middleware(securityHeaders(mux))
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("response encode error: %v", err)
	}
}

// writeError writes the uniform failure body. details carries captured
// stderr when the underlying tmux invocation failed.
func writeError(w http.ResponseWriter, status int, msg string, err error) {
	body := map[string]any{
		"success": false,
		"error":   msg,
	}
	if d := commandDetails(err); d != "" {
		body["details"] = d
	}
	writeJSON(w, status, body)
}

func commandDetails(err error) string {
	var cmdErr *tmux.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Stderr
	}
	return ""
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Endpoint not found", nil)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
}
