package monitor

import (
	"fmt"

	"go.uber.org/atomic"
)

// Stats counts connection and traffic events. All counters are safe for
// concurrent use.
type Stats struct {
	Connects        atomic.Int64
	ConnectFailures atomic.Int64
	Disconnects     atomic.Int64

	BytesRead    atomic.Int64
	LinesRead    atomic.Int64
	ReadErrors   atomic.Int64
	BytesWritten atomic.Int64
	WriteErrors  atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Connects        int64
	ConnectFailures int64
	Disconnects     int64
	BytesRead       int64
	LinesRead       int64
	ReadErrors      int64
	BytesWritten    int64
	WriteErrors     int64
}

func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Connects:        s.Connects.Load(),
		ConnectFailures: s.ConnectFailures.Load(),
		Disconnects:     s.Disconnects.Load(),
		BytesRead:       s.BytesRead.Load(),
		LinesRead:       s.LinesRead.Load(),
		ReadErrors:      s.ReadErrors.Load(),
		BytesWritten:    s.BytesWritten.Load(),
		WriteErrors:     s.WriteErrors.Load(),
	}
}

// String is the compact form shown on the status bar.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf("rx %d B / %d lines, tx %d B, errors %d",
		s.BytesRead, s.LinesRead, s.BytesWritten, s.ReadErrors+s.WriteErrors)
}
