package gate

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// window holds the admitted request instants for one hashed client key,
// oldest first.
type window struct {
	timestamps []time.Time
}

// RateLimiter is a sliding-window limiter keyed by a salted hash of the
// caller's identity. A single table-wide mutex covers prune, count and append
// so bursts from one client cannot be undercounted.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	secret  []byte
	now     func() time.Time
}

// NewRateLimiter creates a limiter. secret salts the client key hash; an empty
// secret still hashes but offers no protection against dictionary reversal.
func NewRateLimiter(secret string) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*window),
		secret:  []byte(secret),
		now:     time.Now,
	}
}

// SetClock replaces the time source, for tests that step through windows.
func (rl *RateLimiter) SetClock(now func() time.Time) {
	rl.mu.Lock()
	rl.now = now
	rl.mu.Unlock()
}

// HashKey returns the hex-encoded keyed BLAKE2b-256 digest of clientKey.
func (rl *RateLimiter) HashKey(clientKey string) string {
	key := rl.secret
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	// New256 only fails for keys longer than 64 bytes
	h, _ := blake2b.New256(key)
	h.Write([]byte(clientKey))
	return hex.EncodeToString(h.Sum(nil))
}

// CheckRateLimit admits the call and records it when fewer than limit calls
// from clientKey fall inside the trailing windowDuration; otherwise it
// rejects without recording.
func (rl *RateLimiter) CheckRateLimit(clientKey string, limit int, windowDuration time.Duration) bool {
	if limit <= 0 {
		return false
	}
	hashed := rl.HashKey(clientKey)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[hashed]
	if !ok {
		w = &window{}
		rl.windows[hashed] = w
	}
	w.timestamps = pruneBefore(w.timestamps, now.Add(-windowDuration))

	if len(w.timestamps) >= limit {
		return false
	}
	w.timestamps = append(w.timestamps, now)
	return true
}

// Remaining reports how many more calls clientKey may make right now.
func (rl *RateLimiter) Remaining(clientKey string, limit int, windowDuration time.Duration) int {
	hashed := rl.HashKey(clientKey)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[hashed]
	if !ok {
		return limit
	}
	cutoff := rl.now().Add(-windowDuration)
	count := 0
	for _, ts := range w.timestamps {
		if ts.After(cutoff) {
			count++
		}
	}
	if remaining := limit - count; remaining > 0 {
		return remaining
	}
	return 0
}

// Sweep drops instants older than retention and deletes empty windows. It
// returns the number of windows removed.
func (rl *RateLimiter) Sweep(retention time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-retention)
	removed := 0
	for key, w := range rl.windows {
		w.timestamps = pruneBefore(w.timestamps, cutoff)
		if len(w.timestamps) == 0 {
			delete(rl.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked client windows.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (rl *RateLimiter) RunSweeper(ctx context.Context, interval, retention time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := rl.Sweep(retention); removed > 0 && logger != nil {
				logger.Debug("rate limit sweep",
					slog.Int("removed", removed),
					slog.Int("remaining", rl.Len()),
				)
			}
		}
	}
}

// pruneBefore drops the leading instants not after cutoff. Timestamps are
// appended in order, so the survivors are a suffix.
func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}
