// Package stream turns repeated pane captures into incremental updates
// for a single subscriber.
package stream

import (
	"strings"
	"time"
)

type UpdateType string

const (
	UpdateFull     UpdateType = "full"
	UpdateAppend   UpdateType = "append"
	UpdateTruncate UpdateType = "truncate"
	UpdatePartial  UpdateType = "partial"
)

// Update is one incremental change to a pane's buffer. Content and
// StartIndex describe the minimal edit; FullContent always carries the
// complete new buffer so a subscriber can resynchronize by ignoring
// the delta entirely.
type Update struct {
	Type        UpdateType `json:"updateType"`
	Content     string     `json:"content"`
	StartIndex  int        `json:"startIndex"`
	FullContent string     `json:"fullContent"`
	Timestamp   time.Time  `json:"timestamp"`
	UpdateCount int        `json:"updateCount"`
}

// Diff classifies the change from previous to current. The second
// return value is false when the buffers are identical and nothing
// should be emitted. Timestamp and UpdateCount are left for the
// session to fill in.
func Diff(previous, current string) (Update, bool) {
	if current == previous {
		return Update{}, false
	}

	u := Update{
		Type:        UpdateFull,
		Content:     current,
		FullContent: current,
	}

	switch {
	case previous == "":
		// First observation: everything is new, emit it as a full
		// buffer rather than a zero-offset append.
	case strings.HasPrefix(current, previous):
		u.Type = UpdateAppend
		u.Content = current[len(previous):]
		u.StartIndex = len(previous)
	case len(current) < len(previous):
		// Buffer shrank: the subscriber replaces from the start.
		u.Type = UpdateTruncate
	default:
		if p := commonPrefixLen(previous, current); 2*p > len(previous) {
			u.Type = UpdatePartial
			u.Content = current[p:]
			u.StartIndex = p
		}
	}

	return u, true
}

// commonPrefixLen is a left-to-right scan up to the shorter length,
// stopping at the first mismatching byte.
func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
