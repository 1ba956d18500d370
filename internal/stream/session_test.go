package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// scriptedCapture returns each entry once, then repeats the last.
type scriptedCapture struct {
	mu      sync.Mutex
	outputs []string
	errs    []error
	idx     int
}

func (c *scriptedCapture) capture(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.idx
	if i >= len(c.outputs) {
		i = len(c.outputs) - 1
	} else {
		c.idx++
	}
	return c.outputs[i], c.errs[i]
}

type chanSink struct {
	ch  chan any
	err error // returned by Send once set
}

func (s *chanSink) Send(v any) error {
	if s.err != nil {
		return s.err
	}
	select {
	case s.ch <- v:
		return nil
	case <-time.After(time.Second):
		return errors.New("test sink full")
	}
}

func recvUpdate(t *testing.T, ch chan any) Update {
	t.Helper()
	select {
	case v := <-ch:
		u, ok := v.(Update)
		if !ok {
			t.Fatalf("received %T, want Update: %+v", v, v)
		}
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
		return Update{}
	}
}

func TestSessionEmitsIncrementalUpdates(t *testing.T) {
	script := &scriptedCapture{
		outputs: []string{"hello", "hello", "hello world"},
		errs:    []error{nil, nil, nil},
	}
	sink := &chanSink{ch: make(chan any, 16)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- NewSession(script.capture, 5*time.Millisecond).Run(ctx, sink)
	}()

	first := recvUpdate(t, sink.ch)
	if first.Type != UpdateFull || first.FullContent != "hello" {
		t.Errorf("first update = %+v, want initial full", first)
	}
	if first.UpdateCount != 1 {
		t.Errorf("first UpdateCount = %d, want 1", first.UpdateCount)
	}

	// The unchanged middle capture emits nothing; the next event is
	// the append with a strictly larger count.
	second := recvUpdate(t, sink.ch)
	if second.Type != UpdateAppend || second.Content != " world" || second.StartIndex != 5 {
		t.Errorf("second update = %+v, want append of %q at 5", second, " world")
	}
	if second.UpdateCount != 2 {
		t.Errorf("second UpdateCount = %d, want 2", second.UpdateCount)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() after cancel = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}

	// No further events after close.
	select {
	case v := <-sink.ch:
		t.Errorf("event after cancellation: %+v", v)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestSessionCaptureErrorIsInBand(t *testing.T) {
	script := &scriptedCapture{
		outputs: []string{"", "ok"},
		errs:    []error{errors.New("pane went away"), nil},
	}
	sink := &chanSink{ch: make(chan any, 16)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- NewSession(script.capture, 5*time.Millisecond).Run(ctx, sink)
	}()

	select {
	case v := <-sink.ch:
		ev, ok := v.(ErrorEvent)
		if !ok {
			t.Fatalf("first event = %T, want ErrorEvent", v)
		}
		if ev.Details != "pane went away" {
			t.Errorf("ErrorEvent.Details = %q", ev.Details)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for error event")
	}

	// The session survived the failure and emits the next capture.
	u := recvUpdate(t, sink.ch)
	if u.FullContent != "ok" || u.UpdateCount != 1 {
		t.Errorf("post-error update = %+v", u)
	}

	cancel()
	<-done
}

func TestSessionStopsOnSinkError(t *testing.T) {
	script := &scriptedCapture{
		outputs: []string{"data"},
		errs:    []error{nil},
	}
	sinkErr := errors.New("subscriber gone")
	sink := &chanSink{ch: make(chan any, 1), err: sinkErr}

	err := NewSession(script.capture, 5*time.Millisecond).Run(context.Background(), sink)
	if !errors.Is(err, sinkErr) {
		t.Errorf("Run() = %v, want sink error", err)
	}
}

func TestSessionEmptyPaneEmitsNothing(t *testing.T) {
	script := &scriptedCapture{
		outputs: []string{""},
		errs:    []error{nil},
	}
	sink := &chanSink{ch: make(chan any, 16)}

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	if err := NewSession(script.capture, 5*time.Millisecond).Run(ctx, sink); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if len(sink.ch) != 0 {
		t.Errorf("%d events for an empty idle pane, want 0", len(sink.ch))
	}
}

func TestSequenceMonotonicity(t *testing.T) {
	script := &scriptedCapture{
		outputs: []string{"a", "ab", "abc", "abcd", "abcde"},
		errs:    []error{nil, nil, nil, nil, nil},
	}
	sink := &chanSink{ch: make(chan any, 16)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- NewSession(script.capture, time.Millisecond).Run(ctx, sink)
	}()

	last := 0
	for i := 0; i < 5; i++ {
		u := recvUpdate(t, sink.ch)
		if u.UpdateCount <= last {
			t.Errorf("UpdateCount %d after %d, want strictly increasing", u.UpdateCount, last)
		}
		last = u.UpdateCount
	}

	cancel()
	<-done
}
