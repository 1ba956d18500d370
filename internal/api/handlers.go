package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tmux-util/backend/internal/tmux"
)

type sessionJSON struct {
	Name         string            `json:"name"`
	FriendlyName *string           `json:"friendly_name"`
	Windows      int               `json:"windows"`
	Created      time.Time         `json:"created"`
	Attached     bool              `json:"attached"`
	ActiveWindow *activeWindowJSON `json:"active_window,omitempty"`
}

type activeWindowJSON struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Command string `json:"command"`
}

type windowJSON struct {
	Index   int        `json:"index"`
	Name    string     `json:"name"`
	Active  bool       `json:"active"`
	Command string     `json:"command"`
	Panes   []paneJSON `json:"panes"`
}

type paneJSON struct {
	Index   int    `json:"index"`
	Active  bool   `json:"active"`
	Command string `json:"command"`
	Path    string `json:"path"`
	PID     int    `json:"pid"`
	Name    string `json:"name"`
	Left    int    `json:"left"`
	Top     int    `json:"top"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

type sessionDetailJSON struct {
	sessionJSON
	WindowsInfo []windowJSON `json:"windows_info"`
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Hello World from tmux-util service!",
		"version": version,
		"endpoints": map[string]string{
			"/api":                    "This help message",
			"/health":                 "Health check endpoint",
			"/tmux/sessions":          "List all tmux sessions",
			"/tmux/sessions/:session": "Get info about specific tmux session",
			"/tmux/create/:session":   "Create a new tmux session",
			"/tmux/kill/:session":     "Kill a tmux session",
			"/tmux/sessions/:session/windows/:window/panes/:pane/content": "Current pane content",
			"/tmux/sessions/:session/windows/:window/panes/:pane/stream":  "Live pane content stream (SSE)",
			"/tmux/sessions/:session/windows/:window/panes/:pane/ws":      "Live pane content stream (WebSocket)",
			"/tmux/session-names": "Friendly session names",
			"/tmux/command":       "Run a tmux command against a session",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Seconds(),
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	sessions, err := s.tmux.ListSessions(r.Context())
	if err != nil {
		log.Printf("list sessions: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list tmux sessions", err)
		return
	}

	friendly := s.names.All()
	out := make([]sessionJSON, 0, len(sessions))
	for _, sess := range sessions {
		item := s.sessionToJSON(sess, friendly)
		aw := s.tmux.SessionActiveWindow(r.Context(), sess.Name)
		item.ActiveWindow = &activeWindowJSON{Index: aw.Index, Name: aw.Name, Command: aw.Command}
		out = append(out, item)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"sessions": out,
		"count":    len(out),
	})
}

func (s *Server) sessionToJSON(sess tmux.Session, friendly map[string]string) sessionJSON {
	item := sessionJSON{
		Name:     sess.Name,
		Windows:  sess.Windows,
		Created:  sess.Created,
		Attached: sess.Attached,
	}
	if name, ok := friendly[sess.Name]; ok {
		item.FriendlyName = &name
	}
	return item
}

// handleSessionRoutes dispatches /tmux/sessions/{session} and
// /tmux/sessions/{session}/windows/{window}/panes/{pane}/{action}.
func (s *Server) handleSessionRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/tmux/sessions/")
	parts := strings.Split(path, "/")

	for i, part := range parts {
		unescaped, err := url.PathUnescape(part)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid path", nil)
			return
		}
		parts[i] = unescaped
	}

	switch {
	case len(parts) == 1 && parts[0] != "":
		s.handleSessionDetail(w, r, parts[0])
	case len(parts) == 5 && parts[1] == "windows" && parts[3] == "panes":
		// Missing action → not found.
		s.handleNotFound(w, r)
	case len(parts) == 6 && parts[1] == "windows" && parts[3] == "panes":
		session, window, pane := parts[0], parts[2], parts[4]
		switch parts[5] {
		case "content":
			s.handlePaneContent(w, r, session, window, pane)
		case "stream":
			s.handlePaneStream(w, r, session, window, pane)
		case "ws":
			s.handlePaneStreamWS(w, r, session, window, pane)
		default:
			s.handleNotFound(w, r)
		}
	default:
		s.handleNotFound(w, r)
	}
}

func (s *Server) handleSessionDetail(w http.ResponseWriter, r *http.Request, session string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	detail, err := s.tmux.SessionDetail(r.Context(), session)
	if err != nil {
		if errors.Is(err, tmux.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Session '%s' not found", session), nil)
			return
		}
		log.Printf("session detail for %s: %v", session, err)
		writeError(w, http.StatusInternalServerError, "Failed to get session info", err)
		return
	}

	out := sessionDetailJSON{
		sessionJSON: s.sessionToJSON(detail.Session, s.names.All()),
		WindowsInfo: make([]windowJSON, 0, len(detail.WindowsInfo)),
	}
	for _, win := range detail.WindowsInfo {
		wj := windowJSON{
			Index:   win.Index,
			Name:    win.Name,
			Active:  win.Active,
			Command: win.Command,
			Panes:   make([]paneJSON, 0, len(win.Panes)),
		}
		for _, p := range win.Panes {
			wj.Panes = append(wj.Panes, paneJSON{
				Index:   p.Index,
				Active:  p.Active,
				Command: p.Command,
				Path:    p.Path,
				PID:     p.PID,
				Name:    p.Title,
				Left:    p.Left,
				Top:     p.Top,
				Width:   p.Width,
				Height:  p.Height,
			})
		}
		out.WindowsInfo = append(out.WindowsInfo, wj)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"session": out,
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	session, ok := pathParam(r.URL.Path, "/tmux/create/")
	if !ok {
		s.handleNotFound(w, r)
		return
	}

	if err := s.tmux.CreateSession(r.Context(), session); err != nil {
		log.Printf("create session %s: %v", session, err)
		writeError(w, http.StatusInternalServerError, "Failed to create session", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Session '%s' created successfully", session),
	})
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	session, ok := pathParam(r.URL.Path, "/tmux/kill/")
	if !ok {
		s.handleNotFound(w, r)
		return
	}

	if !s.tmux.HasSession(r.Context(), session) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Session '%s' not found", session), nil)
		return
	}
	if err := s.tmux.KillSession(r.Context(), session); err != nil {
		log.Printf("kill session %s: %v", session, err)
		writeError(w, http.StatusInternalServerError, "Failed to kill session", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Session '%s' killed successfully", session),
	})
}

func (s *Server) handleNamesList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"session_names": s.names.All(),
	})
}

func (s *Server) handleNameRoutes(w http.ResponseWriter, r *http.Request) {
	session, ok := pathParam(r.URL.Path, "/tmux/session-names/")
	if !ok {
		s.handleNotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodPost:
		s.handleNameSet(w, r, session)
	case http.MethodDelete:
		s.handleNameDelete(w, session)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleNameSet(w http.ResponseWriter, r *http.Request, session string) {
	var body struct {
		FriendlyName string `json:"friendly_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}

	friendly := strings.TrimSpace(body.FriendlyName)
	if friendly == "" {
		writeError(w, http.StatusBadRequest, "Friendly name is required and must be a non-empty string", nil)
		return
	}

	updated, err := s.names.Set(session, friendly)
	if err != nil {
		log.Printf("save session name for %s: %v", session, err)
		writeError(w, http.StatusInternalServerError, "Failed to save session name", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       fmt.Sprintf("Friendly name '%s' set for session '%s'", friendly, session),
		"session_names": updated,
	})
}

func (s *Server) handleNameDelete(w http.ResponseWriter, session string) {
	updated, err := s.names.Delete(session)
	if err != nil {
		log.Printf("remove session name for %s: %v", session, err)
		writeError(w, http.StatusInternalServerError, "Failed to save session names", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       fmt.Sprintf("Friendly name removed for session '%s'", session),
		"session_names": updated,
	})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var body struct {
		Session string `json:"session"`
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}
	if body.Session == "" || body.Command == "" {
		writeError(w, http.StatusBadRequest, "Session and command are required", nil)
		return
	}

	if !s.tmux.HasSession(r.Context(), body.Session) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Session '%s' not found", body.Session), nil)
		return
	}

	output, err := s.tmux.Command(r.Context(), body.Command)
	if err != nil {
		log.Printf("tmux command %q: %v", body.Command, err)
		msg := err.Error()
		if d := commandDetails(err); d != "" {
			msg = strings.TrimSpace(d)
		}
		writeError(w, http.StatusInternalServerError, "Command failed: "+msg, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Command executed successfully",
		"output":  output,
	})
}

// pathParam extracts the single path segment after prefix. Returns
// false for empty or multi-segment remainders.
func pathParam(path, prefix string) (string, bool) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	unescaped, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	return unescaped, true
}
