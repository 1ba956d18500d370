// Package tmux wraps the tmux binary behind a Runner so the HTTP layer
// and tests never shell out directly.
package tmux

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is one row of `tmux list-sessions`.
type Session struct {
	Name     string
	Windows  int
	Created  time.Time
	Attached bool
}

// ActiveWindow is the summary of a session's first listed window.
type ActiveWindow struct {
	Index   int
	Name    string
	Command string
}

// Window is one window of a session, with its panes.
type Window struct {
	Index   int
	Name    string
	Active  bool
	Command string
	Panes   []Pane
}

// Pane carries the geometry and process detail of one pane.
type Pane struct {
	Index   int
	Active  bool
	Command string
	Path    string
	PID     int
	Title   string
	Left    int
	Top     int
	Width   int
	Height  int
}

// SessionDetail is a session plus all of its windows and panes.
type SessionDetail struct {
	Session
	WindowsInfo []Window
}

type Client struct {
	runner Runner
}

func NewClient(runner Runner) *Client {
	return &Client{runner: runner}
}

const (
	sessionFormat = "#{session_name}\t#{session_windows}\t#{session_created}\t#{session_attached}"
	windowFormat  = "#{window_index}\t#{window_name}\t#{window_active}\t#{pane_current_command}"
	paneFormat    = "#{pane_index}\t#{pane_active}\t#{pane_current_command}\t#{pane_current_path}\t" +
		"#{pane_pid}\t#{pane_title}\t#{pane_left}\t#{pane_top}\t#{pane_width}\t#{pane_height}"
	activePaneFormat = "#{pane_pid}\t#{pane_active}"
)

// ListSessions returns all sessions known to the tmux server. A missing
// server is an empty list, not an error.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	res, err := c.runner.Run(ctx, "tmux list-sessions -F "+shellQuote(sessionFormat))
	if err != nil {
		if noServer(err) {
			return nil, nil
		}
		return nil, err
	}
	return parseSessions(res.Stdout), nil
}

// Session returns the listing row for the named session, or
// ErrSessionNotFound.
func (c *Client) Session(ctx context.Context, name string) (Session, error) {
	sessions, err := c.ListSessions(ctx)
	if err != nil {
		return Session{}, err
	}
	for _, s := range sessions {
		if s.Name == name {
			return s, nil
		}
	}
	return Session{}, ErrSessionNotFound
}

// HasSession reports whether the named session exists.
func (c *Client) HasSession(ctx context.Context, name string) bool {
	_, err := c.runner.Run(ctx, "tmux has-session -t "+shellQuote(name))
	return err == nil
}

// CreateSession starts a new detached session.
func (c *Client) CreateSession(ctx context.Context, name string) error {
	_, err := c.runner.Run(ctx, "tmux new-session -d -s "+shellQuote(name))
	return err
}

// KillSession kills the named session.
func (c *Client) KillSession(ctx context.Context, name string) error {
	_, err := c.runner.Run(ctx, "tmux kill-session -t "+shellQuote(name))
	return err
}

// CapturePane returns the current text buffer of the addressed pane.
func (c *Client) CapturePane(ctx context.Context, session, window, pane string) (string, error) {
	target := fmt.Sprintf("%s:%s.%s", session, window, pane)
	res, err := c.runner.Run(ctx, "tmux capture-pane -t "+shellQuote(target)+" -p")
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// Command runs an arbitrary tmux subcommand line. This is the escape
// hatch behind POST /tmux/command.
func (c *Client) Command(ctx context.Context, command string) (string, error) {
	res, err := c.runner.Run(ctx, "tmux "+command)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// SessionActiveWindow returns a best-effort summary of the session's
// first window with its foreground command resolved via the pane's
// process tree. Never fails: missing detail degrades to defaults.
func (c *Client) SessionActiveWindow(ctx context.Context, session string) *ActiveWindow {
	res, err := c.runner.Run(ctx, "tmux list-windows -t "+shellQuote(session)+" -F "+shellQuote(windowFormat))
	if err != nil || res.Stdout == "" {
		return &ActiveWindow{Index: 0, Name: "Window 0", Command: "Unknown"}
	}

	line, _, _ := strings.Cut(res.Stdout, "\n")
	w, ok := parseWindowLine(line)
	if !ok {
		return &ActiveWindow{Index: 0, Name: "Window 0", Command: "Unknown"}
	}

	command := w.Command
	if command == "" {
		command = "No command running"
	}
	if pid := c.activePanePID(ctx, session, w.Index); pid > 0 {
		command = detailedCommand(int32(pid), command)
	}

	return &ActiveWindow{Index: w.Index, Name: w.Name, Command: command}
}

// SessionDetail returns the full window/pane tree of a session, with
// per-pane commands enriched from the process table.
func (c *Client) SessionDetail(ctx context.Context, name string) (*SessionDetail, error) {
	session, err := c.Session(ctx, name)
	if err != nil {
		return nil, err
	}

	detail := &SessionDetail{Session: session, WindowsInfo: []Window{}}

	res, err := c.runner.Run(ctx, "tmux list-windows -t "+shellQuote(name)+" -F "+shellQuote(windowFormat))
	if err != nil {
		// The session exists but its windows could not be listed;
		// return what we have rather than failing the whole lookup.
		return detail, nil
	}

	for _, line := range strings.Split(res.Stdout, "\n") {
		w, ok := parseWindowLine(line)
		if !ok {
			continue
		}
		w.Panes = c.listPanes(ctx, name, w.Index)

		// The window-level command reflects its active pane.
		for _, p := range w.Panes {
			if p.Active {
				w.Command = p.Command
				break
			}
		}
		if w.Command == "" {
			w.Command = "No command running"
		}

		detail.WindowsInfo = append(detail.WindowsInfo, w)
	}

	return detail, nil
}

func (c *Client) listPanes(ctx context.Context, session string, window int) []Pane {
	target := fmt.Sprintf("%s:%d", session, window)
	res, err := c.runner.Run(ctx, "tmux list-panes -t "+shellQuote(target)+" -F "+shellQuote(paneFormat))
	if err != nil {
		return []Pane{}
	}

	var panes []Pane
	for _, line := range strings.Split(res.Stdout, "\n") {
		p, ok := parsePaneLine(line)
		if !ok {
			continue
		}
		p.Command = detailedCommand(int32(p.PID), p.Command)
		panes = append(panes, p)
	}
	if panes == nil {
		panes = []Pane{}
	}
	return panes
}

// activePanePID returns the shell PID of the window's active pane, or 0.
func (c *Client) activePanePID(ctx context.Context, session string, window int) int {
	target := fmt.Sprintf("%s:%d", session, window)
	res, err := c.runner.Run(ctx, "tmux list-panes -t "+shellQuote(target)+" -F "+shellQuote(activePaneFormat))
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		fields := strings.Split(strings.TrimSpace(line), "\t")
		if len(fields) != 2 || fields[1] != "1" {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		return pid
	}
	return 0
}

// parseSessions parses tab-separated list-sessions output, skipping
// malformed rows.
func parseSessions(output string) []Session {
	var sessions []Session
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 4 {
			continue
		}
		windows, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		created, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			continue
		}
		sessions = append(sessions, Session{
			Name:     fields[0],
			Windows:  windows,
			Created:  time.Unix(created, 0).UTC(),
			Attached: fields[3] == "1",
		})
	}
	return sessions
}

func parseWindowLine(line string) (Window, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Window{}, false
	}
	fields := strings.Split(line, "\t")
	if len(fields) != 4 {
		return Window{}, false
	}
	index, err := strconv.Atoi(fields[0])
	if err != nil {
		return Window{}, false
	}
	name := fields[1]
	if name == "" {
		name = fmt.Sprintf("Window %d", index)
	}
	return Window{
		Index:   index,
		Name:    name,
		Active:  fields[2] == "1",
		Command: fields[3],
	}, true
}

func parsePaneLine(line string) (Pane, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Pane{}, false
	}
	fields := strings.Split(line, "\t")
	if len(fields) != 10 {
		return Pane{}, false
	}
	index, err := strconv.Atoi(fields[0])
	if err != nil {
		return Pane{}, false
	}

	p := Pane{
		Index:   index,
		Active:  fields[1] == "1",
		Command: fields[2],
		Path:    fields[3],
		Title:   fields[5],
	}
	if p.Command == "" {
		p.Command = "No command running"
	}
	if p.Path == "" {
		p.Path = "Unknown path"
	}
	if p.Title == "" {
		p.Title = fmt.Sprintf("Pane %d", index)
	}
	p.PID, _ = strconv.Atoi(fields[4])
	p.Left, _ = strconv.Atoi(fields[6])
	p.Top, _ = strconv.Atoi(fields[7])
	p.Width, _ = strconv.Atoi(fields[8])
	p.Height, _ = strconv.Atoi(fields[9])
	return p, true
}

// noServer reports whether err is tmux complaining that no server is
// running, which callers treat as "zero sessions".
func noServer(err error) bool {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	return strings.Contains(cmdErr.Stderr, "no server running") ||
		strings.Contains(cmdErr.Stderr, "error connecting to")
}
