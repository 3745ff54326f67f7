package monitor

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MaxConsoleLines bounds the number of rows the console keeps.
const MaxConsoleLines = 10000

// DefaultPollInterval is how often the UI drains the queue.
const DefaultPollInterval = 30 * time.Millisecond

// Console is the visible log: the received entries and their rendered rows.
// The mutex only guards against the UI toolkit reading rows from its own
// callbacks while the poll loop appends.
type Console struct {
	mu            sync.Mutex
	entries       []Entry
	lines         []string
	showTimestamp bool
	max           int
}

func NewConsole(maxLines int, showTimestamp bool) *Console {
	if maxLines <= 0 {
		maxLines = MaxConsoleLines
	}
	return &Console{max: maxLines, showTimestamp: showTimestamp}
}

// Append adds entries in order.
func (c *Console) Append(entries ...Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		c.appendLocked(e)
	}
}

func (c *Console) appendLocked(e Entry) {
	c.entries = append(c.entries, e)
	c.lines = append(c.lines, e.Format(c.showTimestamp))
	if len(c.entries) > c.max {
		c.entries = c.entries[len(c.entries)-c.max:]
		c.lines = c.lines[len(c.lines)-c.max:]
	}
}

// Pump drains everything currently in q into the console and returns the
// number of rows appended.
func (c *Console) Pump(q *Queue) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return q.Drain(c.appendLocked)
}

// SetShowTimestamp re-renders every row with or without timestamps.
func (c *Console) SetShowTimestamp(show bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if show == c.showTimestamp {
		return
	}
	c.showTimestamp = show
	c.lines = make([]string, len(c.entries))
	for i, e := range c.entries {
		c.lines[i] = e.Format(show)
	}
}

func (c *Console) ShowTimestamp() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.showTimestamp
}

func (c *Console) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

// Line returns row i, or "" when i is out of range.
func (c *Console) Line(i int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.lines) {
		return ""
	}
	return c.lines[i]
}

// Lines returns a copy of the rendered rows.
func (c *Console) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// Entries returns a copy of the stored entries.
func (c *Console) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.entries...)
}

// Text is the console content exactly as displayed.
func (c *Console) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.lines, "\n")
}

func (c *Console) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	c.lines = nil
}

// Poll calls tick every interval until ctx is done.
func Poll(ctx context.Context, interval time.Duration, tick func()) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}
