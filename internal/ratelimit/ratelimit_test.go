package ratelimit

import (
	"testing"
	"time"
)

func TestSlidingWindow_AllowsUpToLimit(t *testing.T) {
	w := NewSlidingWindow(5, 10*time.Second)
	now := time.Now()

	for i := 0; i < 5; i++ {
		if !w.allowAt(now.Add(time.Duration(i) * time.Second)) {
			t.Fatalf("expected event %d to be allowed", i+1)
		}
	}

	if w.allowAt(now.Add(5 * time.Second)) {
		t.Error("expected 6th event inside the window to be rejected")
	}
}

func TestSlidingWindow_RejectedEventNotRecorded(t *testing.T) {
	w := NewSlidingWindow(2, 10*time.Second)
	now := time.Now()

	w.allowAt(now)
	w.allowAt(now)

	// Hammer the full window; none of these should count against the
	// caller once the window slides.
	for i := 0; i < 10; i++ {
		if w.allowAt(now.Add(time.Second)) {
			t.Fatal("expected rejection while window is full")
		}
	}

	if !w.allowAt(now.Add(11 * time.Second)) {
		t.Error("expected event after window slid to be allowed")
	}
}

func TestSlidingWindow_Slides(t *testing.T) {
	w := NewSlidingWindow(3, 10*time.Second)
	now := time.Now()

	w.allowAt(now)
	w.allowAt(now.Add(4 * time.Second))
	w.allowAt(now.Add(8 * time.Second))

	if w.allowAt(now.Add(9 * time.Second)) {
		t.Error("expected rejection with 3 events in the last 10s")
	}
	// The first event falls out of the window at now+10s.
	if !w.allowAt(now.Add(10*time.Second + time.Millisecond)) {
		t.Error("expected oldest event to expire out of the window")
	}
}

func TestSlidingWindow_Table(t *testing.T) {
	tests := []struct {
		name    string
		limit   int
		offsets []int // seconds from start, in order
		want    []bool
	}{
		{"single under limit", 1, []int{0}, []bool{true}},
		{"single over limit", 1, []int{0, 1}, []bool{true, false}},
		{"burst then recovery", 2, []int{0, 0, 0, 11}, []bool{true, true, false, true}},
		{"spread out stays allowed", 2, []int{0, 6, 12, 18}, []bool{true, true, true, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewSlidingWindow(tt.limit, 10*time.Second)
			start := time.Now()
			for i, off := range tt.offsets {
				got := w.allowAt(start.Add(time.Duration(off) * time.Second))
				if got != tt.want[i] {
					t.Errorf("event %d: got %v, want %v", i, got, tt.want[i])
				}
			}
		})
	}
}

func TestSlidingWindow_Remaining(t *testing.T) {
	w := NewSlidingWindow(5, 10*time.Second)
	if w.Remaining() != 5 {
		t.Errorf("expected 5 remaining, got %d", w.Remaining())
	}
	w.Allow()
	w.Allow()
	if w.Remaining() != 3 {
		t.Errorf("expected 3 remaining, got %d", w.Remaining())
	}
}

func TestSlidingWindow_Concurrency(t *testing.T) {
	w := NewSlidingWindow(100, time.Second)
	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 50; j++ {
				w.Allow()
				w.Remaining()
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
