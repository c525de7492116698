package limits

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
)

// window is the sliding-window width for the per-minute rate cap.
const window = time.Minute

// RateLimiter enforces a per-session sliding window of tool-call
// timestamps. One instance lives for the process; it is safe for
// concurrent callers. Includes background cleanup so sessions that go
// quiet do not leak their windows.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time

	stopChan        chan struct{}
	wg              sync.WaitGroup
	once            sync.Once
	cleanupInterval time.Duration
	logger          *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewRateLimiter creates a rate limiter with the default cleanup
// interval of one minute.
func NewRateLimiter(logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{
		windows:         make(map[string][]time.Time),
		stopChan:        make(chan struct{}),
		cleanupInterval: time.Minute,
		logger:          logger,
		now:             time.Now,
	}
}

// Allow admits one call for the session under the per-minute cap.
// Expired entries older than the window are dropped first; when adding
// one more call would exceed the cap, the call is denied and nothing is
// recorded.
func (r *RateLimiter) Allow(sessionID string, perMinute int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	w := r.windows[sessionID]
	keep := w[:0]
	for _, ts := range w {
		if now.Sub(ts) <= window {
			keep = append(keep, ts)
		}
	}
	if len(keep)+1 > perMinute {
		r.windows[sessionID] = keep
		return fault.Limit("Tool call rate limit exceeded")
	}
	r.windows[sessionID] = append(keep, now)
	return nil
}

// Sessions returns the number of sessions with a live window, for the
// metrics gauge.
func (r *RateLimiter) Sessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows)
}

// StartCleanup starts the background janitor that removes fully expired
// windows. It stops when Stop is called.
func (r *RateLimiter) StartCleanup() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stopChan:
				return
			case <-ticker.C:
				r.cleanup()
			}
		}
	}()
}

func (r *RateLimiter) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cleaned := 0
	for session, w := range r.windows {
		live := false
		for _, ts := range w {
			if now.Sub(ts) <= window {
				live = true
				break
			}
		}
		if !live {
			delete(r.windows, session)
			cleaned++
		}
	}
	if cleaned > 0 {
		r.logger.Debug("rate limiter cleanup completed",
			"cleaned_sessions", cleaned, "remaining_sessions", len(r.windows))
	}
}

// Stop halts the janitor and waits for it to exit. Safe to call more
// than once.
func (r *RateLimiter) Stop() {
	r.once.Do(func() {
		close(r.stopChan)
	})
	r.wg.Wait()
}
