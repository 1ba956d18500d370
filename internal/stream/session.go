package stream

import (
	"context"
	"time"
)

// Sink delivers one event to the subscriber. A returned error means the
// transport can no longer accept writes and the session must stop.
type Sink interface {
	Send(v any) error
}

// ErrorEvent is sent in-band when a capture fails without closing the
// stream.
type ErrorEvent struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// CaptureFunc samples the pane's current buffer.
type CaptureFunc func(ctx context.Context) (string, error)

// Session drives one subscriber's capture/diff loop. All state (the
// previous snapshot, the update counter) is private to the session and
// only touched by Run's goroutine, so sessions never share mutable
// state and at most one capture+diff cycle is in flight at a time.
type Session struct {
	capture  CaptureFunc
	interval time.Duration

	previous string
	count    int
}

func NewSession(capture CaptureFunc, interval time.Duration) *Session {
	if interval <= 0 {
		interval = time.Second
	}
	return &Session{
		capture:  capture,
		interval: interval,
	}
}

// Run performs one immediate cycle, then one per tick until ctx is
// cancelled (subscriber gone) or the sink rejects a write. The capture
// inherits ctx, so a hung capture cannot outlive the subscriber.
// Returns nil on cancellation, the sink's error otherwise.
func (s *Session) Run(ctx context.Context, sink Sink) error {
	if err := s.cycle(ctx, sink); err != nil {
		return err
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.cycle(ctx, sink); err != nil {
				return err
			}
		}
	}
}

// cycle captures, diffs against the stored snapshot, and emits at most
// one event. A capture failure is reported in-band and the session
// keeps going; only sink errors propagate.
func (s *Session) cycle(ctx context.Context, sink Sink) error {
	current, err := s.capture(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return sink.Send(ErrorEvent{
			Error:   "Failed to capture pane content",
			Details: err.Error(),
		})
	}

	update, changed := Diff(s.previous, current)
	if !changed {
		return nil
	}

	s.count++
	update.UpdateCount = s.count
	update.Timestamp = time.Now().UTC()

	if err := sink.Send(update); err != nil {
		return err
	}
	s.previous = current
	return nil
}
