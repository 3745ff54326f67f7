// Package headless runs a serial console on plain streams: received rows go
// to an io.Writer and lines read from an io.Reader are sent to the port.
package headless

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"serial-monitor/monitor"
)

// ErrConnectionLost is returned by Run when the port fails while open.
var ErrConnectionLost = errors.New("connection lost")

// Options configures Run.
type Options struct {
	Port         string
	BaudRate     int
	LineEnding   monitor.LineEnding
	Timestamps   bool
	PollInterval time.Duration
	ReadTimeout  time.Duration

	// Open overrides how the port is opened; nil opens a real serial port.
	Open   monitor.OpenFunc
	Logger logrus.FieldLogger
}

// Run connects to opts.Port and streams until ctx is done or the port
// fails. Each line of in is sent with opts.LineEnding appended; each
// received row is written to out.
func Run(ctx context.Context, opts Options, in io.Reader, out io.Writer) error {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var lost atomic.Bool
	queue := monitor.NewQueue(monitor.DefaultQueueSize)
	ctrl := monitor.NewController(queue, monitor.Options{
		Open:        opts.Open,
		ReadTimeout: opts.ReadTimeout,
		Logger:      log,
		OnStateChange: func(st monitor.State) {
			if st != monitor.Disconnected {
				return
			}
			if ctx.Err() == nil {
				lost.Store(true)
			}
			cancel()
		},
	})

	if err := ctrl.Connect(opts.Port, opts.BaudRate); err != nil {
		return err
	}

	// sendLines may stay blocked in Scan after ctx is done; it holds no
	// resources beyond in, which belongs to the caller.
	go sendLines(ctx, ctrl, in, opts.LineEnding, log)

	show := func(e monitor.Entry) {
		fmt.Fprintln(out, e.Format(opts.Timestamps))
	}
	monitor.Poll(ctx, opts.PollInterval, func() {
		queue.Drain(show)
	})

	ctrl.Disconnect()
	// Rows queued between the last tick and shutdown.
	queue.Drain(show)
	log.WithField("stats", ctrl.Stats().Snapshot().String()).Info("Closed")

	if lost.Load() {
		return ErrConnectionLost
	}
	return nil
}

func sendLines(ctx context.Context, ctrl *monitor.Controller, in io.Reader, eol monitor.LineEnding, log logrus.FieldLogger) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		if _, err := ctrl.Send(sc.Text(), eol); err != nil {
			if errors.Is(err, monitor.ErrNotConnected) {
				return
			}
			log.WithError(err).Warn("Send failed")
		}
	}
}
