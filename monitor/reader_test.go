package monitor

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serial-monitor/monitor/monitortest"
)

var stampTime = time.Date(2024, 3, 1, 12, 30, 45, 123000000, time.Local)

func startReader(t *testing.T, p *monitortest.Port, q *Queue) (*Reader, context.CancelFunc, <-chan error) {
	t.Helper()
	r := NewReader(p, q, nil)
	r.now = func() time.Time { return stampTime }

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()
	t.Cleanup(cancel)
	return r, cancel, errCh
}

func waitRun(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not return")
		return nil
	}
}

func TestReaderFramesLinesAcrossReads(t *testing.T) {
	p := monitortest.NewPort()
	p.SetReadTimeout(10 * time.Millisecond)
	q := NewQueue(16)

	p.Push("hel")
	p.Push("lo\r\nwor")
	p.Push("ld\n\n")
	r, cancel, errCh := startReader(t, p, q)

	got := collect(t, q, 3)
	assert.Equal(t, []string{"hello", "world", ""}, texts(got))
	for _, e := range got {
		assert.Equal(t, stampTime, e.Time)
	}

	cancel()
	require.NoError(t, waitRun(t, errCh))
	assert.EqualValues(t, 14, r.stats.BytesRead.Load())
	assert.EqualValues(t, 3, r.stats.LinesRead.Load())
}

func TestReaderFlushesPartialLineOnTimeout(t *testing.T) {
	p := monitortest.NewPort()
	p.SetReadTimeout(10 * time.Millisecond)
	q := NewQueue(16)

	p.Push("prompt> ")
	startReader(t, p, q)

	got := collect(t, q, 1)
	assert.Equal(t, "prompt> ", got[0].Text)
	assert.Equal(t, "prompt>", got[0].Format(false))
}

func TestReaderReplacesInvalidUTF8(t *testing.T) {
	p := monitortest.NewPort()
	p.SetReadTimeout(10 * time.Millisecond)
	q := NewQueue(16)

	p.Push("a\xffb\n")
	startReader(t, p, q)

	got := collect(t, q, 1)
	assert.Equal(t, "a\uFFFDb", got[0].Text)
}

func TestReaderReadErrorIsFatal(t *testing.T) {
	p := monitortest.NewPort()
	p.SetReadTimeout(10 * time.Millisecond)
	q := NewQueue(16)

	p.Push("last\npartial")
	p.Fail(io.ErrUnexpectedEOF)
	r, _, errCh := startReader(t, p, q)

	err := waitRun(t, errCh)
	require.Error(t, err)
	assert.Equal(t, io.ErrUnexpectedEOF, errors.Cause(err))

	got := collect(t, q, 3)
	assert.Equal(t, []string{"last", "partial", "[ERROR] unexpected EOF"}, texts(got))
	assert.True(t, got[0].HasTimestamp())
	assert.False(t, got[2].HasTimestamp())
	assert.EqualValues(t, 1, r.stats.ReadErrors.Load())
}

func TestReaderStopsWithinReadTimeout(t *testing.T) {
	p := monitortest.NewPort()
	p.SetReadTimeout(20 * time.Millisecond)
	q := NewQueue(16)
	_, cancel, errCh := startReader(t, p, q)

	time.Sleep(30 * time.Millisecond)
	start := time.Now()
	cancel()
	require.NoError(t, waitRun(t, errCh))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Zero(t, q.Len())
}

func TestReaderIgnoresCloseAfterCancel(t *testing.T) {
	p := monitortest.NewPort() // no timeout: Read blocks until data or close
	q := NewQueue(16)
	_, cancel, errCh := startReader(t, p, q)

	cancel()
	require.NoError(t, p.Close())
	require.NoError(t, waitRun(t, errCh))
	assert.Zero(t, q.Len(), "closing after cancel must not surface an error")
}
