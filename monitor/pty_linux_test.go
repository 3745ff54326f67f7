//go:build linux

package monitor

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"golang.org/x/sys/unix"
)

// makeRaw disables line discipline processing so bytes pass through the
// pty untouched.
func makeRaw(t *testing.T, f *os.File) {
	t.Helper()
	fd := int(f.Fd())
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	require.NoError(t, err)

	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB
	termios.Cflag |= unix.CS8
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0
	require.NoError(t, unix.IoctlSetTermios(fd, unix.TCSETS, termios))
}

func openPTY(t *testing.T) (master, slave *os.File) {
	t.Helper()
	master, slave, err := pty.Open()
	require.NoError(t, err)
	makeRaw(t, slave)
	t.Cleanup(func() {
		master.Close()
		slave.Close()
	})
	return master, slave
}

// ptyPort adapts the slave end to Port. Reads block; the master closing
// ends them.
type ptyPort struct {
	*os.File
}

func (ptyPort) SetReadTimeout(time.Duration) error { return nil }

func TestReaderOverPTY(t *testing.T) {
	master, slave := openPTY(t)
	q := NewQueue(16)
	r := NewReader(slave, q, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(context.Background()) }()

	_, err := master.Write([]byte("ping\r\npong\n"))
	require.NoError(t, err)
	got := collect(t, q, 2)
	assert.Equal(t, []string{"ping", "pong"}, texts(got))

	// Hanging up the master fails the slave read.
	require.NoError(t, master.Close())
	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not stop after hangup")
	}
	last := collect(t, q, 1)
	assert.Contains(t, last[0].Text, "[ERROR]")
}

func TestControllerSendOverPTY(t *testing.T) {
	master, slave := openPTY(t)
	open := func(device string, mode *serial.Mode) (Port, error) {
		return ptyPort{slave}, nil
	}
	c := NewController(NewQueue(16), Options{Open: open, JoinTimeout: 20 * time.Millisecond})
	require.NoError(t, c.Connect(slave.Name(), 115200))
	defer c.Disconnect()

	_, err := c.Send("AT", EOLCRLF)
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(master, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("AT\r\n"), buf)
}
