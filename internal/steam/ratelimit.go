package steam

import (
	"context"
	"sync"
	"time"
)

// WindowLimiter enforces a hard cap on calls per sliding window. The Steam
// Web API tolerates roughly 100 storefront calls per minute before it starts
// returning 429s, and those penalties outlast the window, so the limiter
// blocks rather than erroring when the cap is reached.
//
// A token bucket admits bursts above the cap right after an idle period,
// which is exactly what trips Steam's limiter; the sliding window keeps the
// count over any window-sized interval at or below the cap.
type WindowLimiter struct {
	maxCalls int
	window   time.Duration

	mu    sync.Mutex
	calls []time.Time

	// now is swappable in tests.
	now func() time.Time
}

// NewWindowLimiter builds a limiter admitting at most maxCalls per window.
func NewWindowLimiter(maxCalls int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		maxCalls: maxCalls,
		window:   window,
		now:      time.Now,
	}
}

// Acquire blocks until a call slot is available or ctx is done. On success
// the slot is consumed immediately.
func (l *WindowLimiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)

		if len(l.calls) < l.maxCalls {
			l.calls = append(l.calls, now)
			l.mu.Unlock()
			return nil
		}

		// Sleep until the oldest recorded call leaves the window, then
		// re-check: another goroutine may have taken the freed slot.
		wait := l.calls[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Available reports how many slots are free right now.
func (l *WindowLimiter) Available() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return l.maxCalls - len(l.calls)
}

// prune drops timestamps that have left the window. Callers hold l.mu.
func (l *WindowLimiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.calls) && !l.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}
