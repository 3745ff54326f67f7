package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// collect drains q until at least n entries have arrived.
func collect(t *testing.T, q *Queue, n int) []Entry {
	t.Helper()
	var got []Entry
	require.Eventually(t, func() bool {
		q.Drain(func(e Entry) { got = append(got, e) })
		return len(got) >= n
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func texts(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}
