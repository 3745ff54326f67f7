package monitor

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// StampLayout is the timestamp format shown in front of received rows.
const StampLayout = "15:04:05.000"

// Entry is one unit of decoded text handed from the reader to the console.
// A zero Time means the entry carries no timestamp.
type Entry struct {
	Time time.Time
	Text string
}

// NewEntry stamps text with t.
func NewEntry(t time.Time, text string) Entry {
	return Entry{Time: t, Text: text}
}

// ErrorEntry builds an unstamped "[ERROR] ..." entry.
func ErrorEntry(format string, args ...interface{}) Entry {
	return Entry{Text: "[ERROR] " + fmt.Sprintf(format, args...)}
}

// InfoEntry builds an unstamped "[INFO] ..." entry.
func InfoEntry(format string, args ...interface{}) Entry {
	return Entry{Text: "[INFO] " + fmt.Sprintf(format, args...)}
}

// HasTimestamp reports whether the entry was stamped on receipt.
func (e Entry) HasTimestamp() bool {
	return !e.Time.IsZero()
}

// Stamp returns the millisecond timestamp, or "" for unstamped entries.
func (e Entry) Stamp() string {
	if !e.HasTimestamp() {
		return ""
	}
	return e.Time.Format(StampLayout)
}

// Format renders the entry as a console row.
func (e Entry) Format(showTimestamp bool) string {
	text := strings.TrimRightFunc(e.Text, unicode.IsSpace)
	if showTimestamp && e.HasTimestamp() {
		return fmt.Sprintf("[%s] %s", e.Stamp(), text)
	}
	return text
}
