// Package monitor connects to a serial port, reads it on a background
// goroutine and hands received text to the console through a FIFO queue.
package monitor

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

const (
	// DefaultReadTimeout bounds each read so the reader notices a disconnect.
	DefaultReadTimeout = 200 * time.Millisecond
	// DefaultJoinTimeout bounds how long Disconnect waits for the reader.
	DefaultJoinTimeout = time.Second
)

// ErrNotConnected is returned by Send while no port is open.
var ErrNotConnected = errors.New("not connected")

// State is the connection state of a Controller.
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Port is the subset of serial.Port the controller needs.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// OpenFunc opens device with mode.
type OpenFunc func(device string, mode *serial.Mode) (Port, error)

func openSerial(device string, mode *serial.Mode) (Port, error) {
	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Options configures a Controller. Zero values select the defaults.
type Options struct {
	Open          OpenFunc
	ReadTimeout   time.Duration
	JoinTimeout   time.Duration
	Logger        logrus.FieldLogger
	Stats         *Stats
	OnStateChange func(State)
}

// session is one open port handle and the reader goroutine serving it.
type session struct {
	port   Port
	device string
	baud   int
	cancel context.CancelFunc
	done   chan struct{} // closed when the reader loop has returned

	closeOnce sync.Once
	closeErr  error
}

func (s *session) close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.port.Close()
	})
	return s.closeErr
}

// Controller owns the port handle. It opens and closes the port, runs one
// reader per open handle and writes outbound text.
type Controller struct {
	mu            sync.Mutex
	queue         *Queue
	open          OpenFunc
	readTimeout   time.Duration
	joinTimeout   time.Duration
	log           logrus.FieldLogger
	stats         *Stats
	onStateChange func(State)
	active        *session
}

func NewController(q *Queue, opts Options) *Controller {
	c := &Controller{
		queue:         q,
		open:          opts.Open,
		readTimeout:   opts.ReadTimeout,
		joinTimeout:   opts.JoinTimeout,
		log:           opts.Logger,
		stats:         opts.Stats,
		onStateChange: opts.OnStateChange,
	}
	if c.open == nil {
		c.open = openSerial
	}
	if c.readTimeout <= 0 {
		c.readTimeout = DefaultReadTimeout
	}
	if c.joinTimeout <= 0 {
		c.joinTimeout = DefaultJoinTimeout
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	if c.stats == nil {
		c.stats = NewStats()
	}
	return c
}

// SetOnStateChange registers fn to be called after every state transition,
// including the one caused by a failed read. fn is called without the
// controller lock held and may run on the reader goroutine.
func (c *Controller) SetOnStateChange(fn func(State)) {
	c.mu.Lock()
	c.onStateChange = fn
	c.mu.Unlock()
}

// Stats returns the counters shared with the reader.
func (c *Controller) Stats() *Stats {
	return c.stats
}

// State reports whether a port is open.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Disconnected
	}
	return Connected
}

// Device returns the open device path, or "" when disconnected.
func (c *Controller) Device() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ""
	}
	return c.active.device
}

// BaudRate returns the open baud rate, or 0 when disconnected.
func (c *Controller) BaudRate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return 0
	}
	return c.active.baud
}

// Connect opens device at baud (8N1) and starts the reader. An existing
// connection is torn down completely first. On failure the controller stays
// disconnected.
func (c *Controller) Connect(device string, baud int) error {
	c.mu.Lock()
	hadSession := c.active != nil
	c.teardownLocked()
	err := c.openLocked(device, baud)
	c.mu.Unlock()

	if err != nil {
		if hadSession {
			c.notify(Disconnected)
		}
		return err
	}
	c.notify(Connected)
	return nil
}

func (c *Controller) openLocked(device string, baud int) error {
	if device == "" {
		return errors.New("no port selected")
	}
	if baud <= 0 {
		return errors.Errorf("invalid baud rate %d", baud)
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := c.open(device, mode)
	if err != nil {
		c.stats.ConnectFailures.Inc()
		return errors.Wrapf(err, "could not open %s @ %d", device, baud)
	}
	if err := port.SetReadTimeout(c.readTimeout); err != nil {
		_ = port.Close()
		c.stats.ConnectFailures.Inc()
		return errors.Wrapf(err, "could not set read timeout on %s", device)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		port:   port,
		device: device,
		baud:   baud,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.active = s
	c.stats.Connects.Inc()

	go c.read(ctx, s, NewReader(port, c.queue, c.stats))

	c.log.WithFields(logrus.Fields{"device": device, "baud": baud}).Info("Connected")
	return nil
}

// read runs the reader for s. A failed read ends the session.
func (c *Controller) read(ctx context.Context, s *session, r *Reader) {
	err := r.Run(ctx)
	close(s.done)
	if err == nil {
		return
	}

	c.log.WithError(err).WithField("device", s.device).Warn("Reader stopped")

	c.mu.Lock()
	current := c.active == s
	if current {
		c.active = nil
		c.stats.Disconnects.Inc()
	}
	c.mu.Unlock()

	s.cancel()
	if cerr := s.close(); cerr != nil {
		c.log.WithError(cerr).Debug("Ignoring error while closing failed port")
	}
	if current {
		c.notify(Disconnected)
	}
}

// Disconnect stops the reader and closes the port. It is safe to call in any
// state; errors during teardown are logged and otherwise ignored.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	s := c.active
	c.teardownLocked()
	c.mu.Unlock()

	if s != nil {
		c.log.WithField("device", s.device).Info("Disconnected")
		c.notify(Disconnected)
	}
}

func (c *Controller) teardownLocked() {
	s := c.active
	if s == nil {
		return
	}
	c.active = nil
	s.cancel()

	timer := time.NewTimer(c.joinTimeout)
	select {
	case <-s.done:
		timer.Stop()
	case <-timer.C:
		c.log.WithField("device", s.device).Warn("Reader did not stop in time, closing port anyway")
	}

	if err := s.close(); err != nil {
		c.log.WithError(err).Debug("Ignoring error while closing port")
	}
	c.stats.Disconnects.Inc()
}

// Send writes text followed by eol. A write failure is also pushed onto the
// queue as an error entry; the connection stays open.
func (c *Controller) Send(text string, eol LineEnding) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.active
	if s == nil {
		return 0, ErrNotConnected
	}

	data := EncodeLine(text, eol)
	n, err := s.port.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	c.stats.BytesWritten.Add(int64(n))
	if err != nil {
		c.stats.WriteErrors.Inc()
		if !c.queue.Offer(ErrorEntry("send failed: %v", err)) {
			c.log.Warn("Queue full, dropping send error")
		}
		c.log.WithError(err).WithField("device", s.device).Warn("Write failed")
		return n, errors.Wrap(err, "send failed")
	}
	return n, nil
}

func (c *Controller) notify(st State) {
	c.mu.Lock()
	fn := c.onStateChange
	c.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}
