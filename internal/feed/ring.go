package feed

import "sync"

// Ring is a bounded FIFO queue. When full, Send discards the oldest item.
type Ring[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []T
	head   int // read position
	count  int
	closed bool

	// Stats
	received int64
	sent     int64
	dropped  int64
}

// NewRing creates a ring holding at most capacity items.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	r := &Ring[T]{buf: make([]T, capacity)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Send appends item. dropped reports whether the oldest item was
// discarded to make room; ok is false if the ring is closed.
func (r *Ring[T]) Send(item T) (dropped, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false, false
	}

	if r.count == len(r.buf) {
		var zero T
		r.buf[r.head] = zero
		r.head = (r.head + 1) % len(r.buf)
		r.count--
		r.dropped++
		dropped = true
	}

	r.buf[(r.head+r.count)%len(r.buf)] = item
	r.count++
	r.received++

	r.cond.Signal()
	return dropped, true
}

// Receive removes and returns the oldest item, blocking until one is
// available. It returns false once the ring is closed and empty.
func (r *Ring[T]) Receive() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.count == 0 && !r.closed {
		r.cond.Wait()
	}
	if r.count == 0 {
		var zero T
		return zero, false
	}
	return r.pop(), true
}

// TryReceive is Receive without blocking.
func (r *Ring[T]) TryReceive() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		var zero T
		return zero, false
	}
	return r.pop(), true
}

// DrainTo removes up to max items (all when max <= 0) without blocking.
func (r *Ring[T]) DrainTo(max int) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.count
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}

	out := make([]T, n)
	for i := range out {
		out[i] = r.pop()
	}
	return out
}

// Close stops accepting items and wakes blocked receivers. Items already
// queued can still be received.
func (r *Ring[T]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.cond.Broadcast()
}

// Len returns the number of queued items.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Stats returns ring statistics.
func (r *Ring[T]) Stats() RingStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RingStats{
		Count:    r.count,
		Capacity: len(r.buf),
		Received: r.received,
		Sent:     r.sent,
		Dropped:  r.dropped,
	}
}

// RingStats contains ring statistics.
type RingStats struct {
	Count    int   `json:"count"`
	Capacity int   `json:"capacity"`
	Received int64 `json:"received"`
	Sent     int64 `json:"sent"`
	Dropped  int64 `json:"dropped"`
}

// pop removes the head item. Must be called with lock held and count > 0.
func (r *Ring[T]) pop() T {
	item := r.buf[r.head]
	var zero T
	r.buf[r.head] = zero // Clear reference for GC
	r.head = (r.head + 1) % len(r.buf)
	r.count--
	r.sent++
	return item
}
