package responder

import (
	"sync"
	"time"
)

// RateWindow caps how many replies go out in a trailing window. A slot is
// reserved before the slow provider call and then either committed with the
// send time or cancelled, so concurrent callers can never overrun capacity.
type RateWindow struct {
	mu       sync.Mutex
	capacity int
	window   time.Duration
	now      func() time.Time
	sent     []time.Time
	pending  int
}

// NewRateWindow creates a window. A nil now uses time.Now.
func NewRateWindow(capacity int, window time.Duration, now func() time.Time) *RateWindow {
	if now == nil {
		now = time.Now
	}
	return &RateWindow{capacity: capacity, window: window, now: now}
}

// prune drops entries older than the window. Caller holds mu.
func (w *RateWindow) prune() {
	cutoff := w.now().Add(-w.window)
	i := 0
	for i < len(w.sent) && !w.sent[i].After(cutoff) {
		i++
	}
	w.sent = w.sent[i:]
}

// Reserve claims a slot, reporting false when the window is full.
func (w *RateWindow) Reserve() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune()
	if len(w.sent)+w.pending >= w.capacity {
		return false
	}
	w.pending++
	return true
}

// Commit turns a reservation into a sent entry stamped now.
func (w *RateWindow) Commit() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending > 0 {
		w.pending--
	}
	w.sent = append(w.sent, w.now())
}

// Cancel releases a reservation without recording a send.
func (w *RateWindow) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending > 0 {
		w.pending--
	}
}

// Used is the number of sends still inside the window.
func (w *RateWindow) Used() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune()
	return len(w.sent)
}

// Capacity is the maximum number of sends per window.
func (w *RateWindow) Capacity() int {
	return w.capacity
}
