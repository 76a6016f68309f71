package game

import "sync"

// updateQueue is a thread-safe FIFO queue for inbound replicated updates.
//
// The queue is unbounded: the transport may deliver a large backlog after a
// device comes back online and enqueueing must never block delivery.
//
// Thread-safety is provided for external enqueuing (transport callbacks)
// while the Consumer's Run loop dequeues. The queue uses a channel for
// signaling to enable context-aware waiting in the Run loop.
type updateQueue struct {
	mu      sync.Mutex
	updates []Update
	closed  bool
	signal  chan struct{} // Signals update availability (buffered, size 1)
}

// newUpdateQueue creates an empty update queue.
func newUpdateQueue() *updateQueue {
	return &updateQueue{
		updates: make([]Update, 0, 64),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds an update to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *updateQueue) Enqueue(u Update) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.updates = append(q.updates, u)

	// Signal availability (non-blocking - buffer of 1 coalesces signals)
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Update{}, false) if the queue is empty.
func (q *updateQueue) TryDequeue() (Update, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.updates) == 0 {
		return Update{}, false
	}

	u := q.updates[0]

	// Nil out the slot so the payload's pointers can be collected before
	// the backing array is reallocated.
	q.updates[0] = Update{}

	if len(q.updates) == 1 {
		q.updates = q.updates[:0]
	} else {
		q.updates = q.updates[1:]
	}

	return u, true
}

// Wait returns a channel that signals when updates may be available.
// Use with select for context-aware waiting. The channel closes when the
// queue closes, waking all waiters.
func (q *updateQueue) Wait() <-chan struct{} {
	return q.signal
}

// Closed reports whether the queue has been closed. A buffered signal can
// outlive its item when another pass already drained the queue, so waiters
// must check this rather than infer closure from an empty queue.
func (q *updateQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the current queue length.
func (q *updateQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.updates)
}

// Close signals that no more updates will be enqueued.
func (q *updateQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
