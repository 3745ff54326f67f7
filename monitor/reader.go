package monitor

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

const readBufferSize = 1024

// Reader pulls bytes from an open port, frames them into lines and pushes
// stamped entries onto a Queue until its context is cancelled or the port
// fails.
type Reader struct {
	port    io.Reader
	queue   *Queue
	stats   *Stats
	decoder *encoding.Decoder
	now     func() time.Time
	partial []byte
}

// NewReader returns a Reader for port. The port must already have a read
// timeout configured so that Run can observe cancellation.
func NewReader(port io.Reader, q *Queue, stats *Stats) *Reader {
	if stats == nil {
		stats = NewStats()
	}
	return &Reader{
		port:    port,
		queue:   q,
		stats:   stats,
		decoder: unicode.UTF8.NewDecoder(),
		now:     time.Now,
	}
}

// Run reads until ctx is done or a read fails. A read failure is pushed onto
// the queue as an unstamped error entry and returned; cancellation returns
// nil.
func (r *Reader) Run(ctx context.Context) error {
	buf := make([]byte, readBufferSize)
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := r.port.Read(buf)
		if n > 0 {
			r.stats.BytesRead.Add(int64(n))
			r.partial = append(r.partial, buf[:n]...)
			if !r.emitLines(ctx) {
				return nil
			}
		} else if err == nil && len(r.partial) > 0 {
			// Timed out mid-line: hand over what we have.
			if !r.flush(ctx) {
				return nil
			}
		}

		if err != nil {
			// Closing the port after cancellation is not a failure.
			if ctx.Err() != nil {
				return nil
			}
			if len(r.partial) > 0 && !r.flush(ctx) {
				return nil
			}
			r.stats.ReadErrors.Inc()
			r.queue.Put(ctx, ErrorEntry("%v", err))
			return errors.Wrap(err, "serial read")
		}
	}
}

func (r *Reader) emitLines(ctx context.Context) bool {
	for {
		idx := bytes.IndexByte(r.partial, '\n')
		if idx < 0 {
			return true
		}
		line := r.partial[:idx]
		r.partial = r.partial[idx+1:]
		if !r.emit(ctx, bytes.TrimSuffix(line, []byte{'\r'})) {
			return false
		}
	}
}

func (r *Reader) flush(ctx context.Context) bool {
	line := r.partial
	r.partial = nil
	return r.emit(ctx, line)
}

func (r *Reader) emit(ctx context.Context, line []byte) bool {
	r.stats.LinesRead.Inc()
	return r.queue.Put(ctx, NewEntry(r.now(), r.decode(line)))
}

// decode converts raw bytes to text, replacing undecodable sequences.
func (r *Reader) decode(b []byte) string {
	out, err := r.decoder.Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "\uFFFD")
	}
	return string(out)
}
