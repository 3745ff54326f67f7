// Package monitortest provides a scripted serial port for tests of code
// built on package monitor.
package monitortest

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// ErrClosed is returned by reads on a closed Port.
var ErrClosed = errors.New("port closed")

type readResult struct {
	data []byte
	err  error
}

// Gauge tracks how many Read calls are in flight across ports.
type Gauge struct {
	live atomic.Int32
	max  atomic.Int32
}

func (g *Gauge) enter() {
	n := g.live.Inc()
	for {
		m := g.max.Load()
		if n <= m || g.max.CompareAndSwap(m, n) {
			return
		}
	}
}

func (g *Gauge) exit() {
	g.live.Dec()
}

// Live is the number of reads currently blocked.
func (g *Gauge) Live() int32 {
	return g.live.Load()
}

// Max is the highest number of concurrent reads seen.
func (g *Gauge) Max() int32 {
	return g.max.Load()
}

// Port satisfies monitor.Port. Reads return pushed results, time out after
// the configured read timeout and fail once the port is closed. A Stubborn
// port ignores both the timeout and Close until Release is called.
type Port struct {
	Stubborn bool
	Gauge    *Gauge

	reads   chan readResult
	closed  chan struct{}
	release chan struct{}

	closeOnce   sync.Once
	releaseOnce sync.Once
	closeCount  atomic.Int32

	mu       sync.Mutex
	timeout  time.Duration
	written  bytes.Buffer
	writeErr error
}

func NewPort() *Port {
	return &Port{
		reads:   make(chan readResult, 16),
		closed:  make(chan struct{}),
		release: make(chan struct{}),
	}
}

// Push queues data for a future Read.
func (p *Port) Push(data string) {
	p.reads <- readResult{data: []byte(data)}
}

// Fail makes a future Read return err.
func (p *Port) Fail(err error) {
	p.reads <- readResult{err: err}
}

// Release unblocks a Stubborn port's pending and future reads.
func (p *Port) Release() {
	p.releaseOnce.Do(func() { close(p.release) })
}

func (p *Port) Read(b []byte) (int, error) {
	if p.Gauge != nil {
		p.Gauge.enter()
		defer p.Gauge.exit()
	}

	if p.Stubborn {
		select {
		case r := <-p.reads:
			return copy(b, r.data), r.err
		case <-p.release:
			return 0, ErrClosed
		}
	}

	var expired <-chan time.Time
	if timeout := p.ReadTimeout(); timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case r := <-p.reads:
		return copy(b, r.data), r.err
	case <-p.closed:
		return 0, ErrClosed
	case <-expired:
		return 0, nil
	}
}

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.written.Write(b)
}

// SetWriteErr makes every following Write fail with err; nil restores it.
func (p *Port) SetWriteErr(err error) {
	p.mu.Lock()
	p.writeErr = err
	p.mu.Unlock()
}

// Written returns everything written so far.
func (p *Port) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.written.Bytes()...)
}

func (p *Port) Close() error {
	p.closeCount.Inc()
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

// CloseCount is the number of Close calls, including repeated ones.
func (p *Port) CloseCount() int32 {
	return p.closeCount.Load()
}

func (p *Port) IsClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

func (p *Port) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	p.timeout = t
	p.mu.Unlock()
	return nil
}

func (p *Port) ReadTimeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timeout
}
