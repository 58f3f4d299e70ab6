package gateway

import (
	"sync"
	"time"
)

// window is a fixed-interval call counter for one capability. The check
// and the increment happen under one lock so two concurrent callers can
// never both claim the last slot.
type window struct {
	mu     sync.Mutex
	budget int
	length time.Duration
	start  time.Time
	count  int
}

// take consumes one call from the current window. When the budget is
// spent it returns false and the time remaining until the window resets.
func (w *window) take(now time.Time) (bool, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.start.IsZero() || now.Sub(w.start) >= w.length {
		w.start = now
		w.count = 0
	}
	if w.budget > 0 && w.count >= w.budget {
		return false, w.start.Add(w.length).Sub(now)
	}
	w.count++
	return true, 0
}
