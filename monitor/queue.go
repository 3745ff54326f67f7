package monitor

import "context"

// DefaultQueueSize bounds the number of entries waiting for the poll loop.
const DefaultQueueSize = 4096

// Queue carries entries from the reader goroutine to the poll loop in FIFO
// order. It is safe for one producer and one consumer without extra locking.
type Queue struct {
	ch chan Entry
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan Entry, size)}
}

// Put enqueues e, blocking while the queue is full. It returns false if ctx
// is done before there was room.
func (q *Queue) Put(ctx context.Context, e Entry) bool {
	select {
	case q.ch <- e:
		return true
	case <-ctx.Done():
		return false
	}
}

// Offer enqueues e without blocking. It returns false and drops e when the
// queue is full.
func (q *Queue) Offer(e Entry) bool {
	select {
	case q.ch <- e:
		return true
	default:
		return false
	}
}

// Drain passes every entry currently queued to fn, oldest first, and returns
// how many were handed over. It never blocks.
func (q *Queue) Drain(fn func(Entry)) int {
	n := 0
	for {
		select {
		case e := <-q.ch:
			fn(e)
			n++
		default:
			return n
		}
	}
}

// Len returns the number of entries waiting.
func (q *Queue) Len() int {
	return len(q.ch)
}
