package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tmux-util/backend/internal/stream"
)

// handlePaneContent is the one-shot capture. A failed capture is an
// empty snapshot, not an error: the pane may simply be idle or
// momentarily inaccessible.
func (s *Server) handlePaneContent(w http.ResponseWriter, r *http.Request, session, window, pane string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	content, err := s.tmux.CapturePane(r.Context(), session, window, pane)
	if err != nil {
		log.Printf("capture pane %s:%s.%s: %v", session, window, pane, err)
		content = ""
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"content":   content,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// sseSink writes events as Server-Sent Events and flushes after each.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSink) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *Server) handlePaneStream(w http.ResponseWriter, r *http.Request, session, window, pane string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log.Printf("stream opened for %s:%s.%s by %s", session, window, pane, r.RemoteAddr)

	sess := s.newPaneSession(session, window, pane)
	// Run returns when the subscriber disconnects (request context) or
	// the response can no longer be written. Either way the ticker is
	// already stopped.
	if err := sess.Run(r.Context(), &sseSink{w: w, flusher: flusher}); err != nil {
		log.Printf("stream for %s:%s.%s closed: %v", session, window, pane, err)
		return
	}
	log.Printf("stream closed for %s:%s.%s", session, window, pane)
}

func (s *Server) newPaneSession(session, window, pane string) *stream.Session {
	capture := func(ctx context.Context) (string, error) {
		return s.tmux.CapturePane(ctx, session, window, pane)
	}
	return stream.NewSession(capture, s.cfg.Monitor.PollInterval)
}

var upgrader = websocket.Upgrader{
	// The IP gate has already vetted the connection; browser origin
	// checks add nothing for a VPN-only service.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsClient decouples event production from socket writes with a
// buffered send channel and a write pump goroutine.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func newWSClient(conn *websocket.Conn) *wsClient {
	c := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *wsClient) close() {
	close(c.send)
}

var errClientTooSlow = errors.New("ws client too slow")

func (c *wsClient) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errClientTooSlow
	}
}

// handlePaneStreamWS carries the same event stream over a WebSocket.
func (s *Server) handlePaneStreamWS(w http.ResponseWriter, r *http.Request, session, window, pane string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	log.Printf("ws stream opened for %s:%s.%s by %s", session, window, pane, r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := newWSClient(conn)
	defer client.close()

	// Reads are discarded; their only purpose is disconnect detection.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sess := s.newPaneSession(session, window, pane)
	if err := sess.Run(ctx, client); err != nil {
		log.Printf("ws stream for %s:%s.%s closed: %v", session, window, pane, err)
		return
	}
	log.Printf("ws stream closed for %s:%s.%s", session, window, pane)
}
