// Package ratelimit implements the per-connection sliding window used to
// throttle message sends. Each session owns one window; state never
// leaves the process.
package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindow allows at most limit events per rolling window.
type SlidingWindow struct {
	limit  int
	window time.Duration

	mu     sync.Mutex
	stamps []time.Time
}

func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{limit: limit, window: window}
}

// Allow records an event if the window has room and reports whether it
// was admitted. A rejected event is not recorded.
func (w *SlidingWindow) Allow() bool {
	return w.allowAt(time.Now())
}

func (w *SlidingWindow) allowAt(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.window)
	kept := w.stamps[:0]
	for _, t := range w.stamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.stamps = kept

	if len(w.stamps) >= w.limit {
		return false
	}
	w.stamps = append(w.stamps, now)
	return true
}

// Remaining reports how many events the window would still admit.
func (w *SlidingWindow) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := time.Now().Add(-w.window)
	count := 0
	for _, t := range w.stamps {
		if t.After(cutoff) {
			count++
		}
	}
	if count >= w.limit {
		return 0
	}
	return w.limit - count
}
