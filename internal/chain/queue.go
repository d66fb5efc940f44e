package chain

import (
	"context"
	"sync"

	"github.com/roach88/daokit/internal/vm"
)

// request is one submitted message waiting for the processor.
type request struct {
	ctx  context.Context
	msg  vm.Message
	done chan result
}

type result struct {
	receipt Receipt
	err     error
}

// requestQueue is an unbounded FIFO of submitted messages. Submit may be
// called from any goroutine; only the Run loop dequeues.
//
// The signal channel has a buffer of one so repeated enqueues coalesce into
// a single wake-up, and closing it wakes the loop for shutdown.
type requestQueue struct {
	mu       sync.Mutex
	requests []request
	closed   bool
	signal   chan struct{}
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		requests: make([]request, 0, 16),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds r to the back of the queue. It returns false once the queue
// is closed.
func (q *requestQueue) Enqueue(r request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.requests = append(q.requests, r)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front request without blocking.
func (q *requestQueue) TryDequeue() (request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.requests) == 0 {
		return request{}, false
	}
	r := q.requests[0]
	// Clear the slot so the backing array does not pin finished requests.
	q.requests[0] = request{}
	if len(q.requests) == 1 {
		q.requests = q.requests[:0]
	} else {
		q.requests = q.requests[1:]
	}
	return r, true
}

func (q *requestQueue) Wait() <-chan struct{} {
	return q.signal
}

func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Close stops accepting requests and wakes the loop.
func (q *requestQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
