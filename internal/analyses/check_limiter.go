package analyses

import (
	"sync"
	"time"
)

const checkLimitWindow = 1 * time.Second

// checkLimiter rejects a status check for the same client and operation
// arriving within window of the previous one.
type checkLimiter struct {
	mu      sync.Mutex
	lastHit map[string]time.Time
	now     func() time.Time
	window  time.Duration
}

func newCheckLimiter(window time.Duration, now func() time.Time) *checkLimiter {
	if now == nil {
		now = time.Now
	}
	if window <= 0 {
		window = checkLimitWindow
	}
	return &checkLimiter{
		lastHit: make(map[string]time.Time),
		now:     now,
		window:  window,
	}
}

func (l *checkLimiter) Allow(clientKey, operationID string) bool {
	if l == nil {
		return true
	}
	key := clientKey + "|" + operationID
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, last := range l.lastHit {
		if now.Sub(last) >= l.window {
			delete(l.lastHit, k)
		}
	}
	if last, ok := l.lastHit[key]; ok && now.Sub(last) < l.window {
		return false
	}
	l.lastHit[key] = now
	return true
}

func (l *checkLimiter) RetryAfterSeconds() int {
	if l == nil {
		return int(checkLimitWindow.Seconds())
	}
	return int(l.window.Seconds())
}
