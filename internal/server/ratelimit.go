package server

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// rateLimitContextKey is the context key for the rate limit holder
type rateLimitContextKey struct{}

// RateLimitInfo describes the caller's per-client window after admission.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	Window    time.Duration
	// Rejected adds a Retry-After header
	Rejected bool
}

type rateLimitHolder struct {
	info *RateLimitInfo
}

// SetRateLimits records rate limit info for RateLimitHeadersMiddleware to
// write. No-op if the middleware isn't present.
func SetRateLimits(ctx context.Context, rl *RateLimitInfo) {
	if h, ok := ctx.Value(rateLimitContextKey{}).(*rateLimitHolder); ok {
		h.info = rl
	}
}

// GetRateLimits retrieves rate limit info from context.
// Returns nil if no rate limits are set.
func GetRateLimits(ctx context.Context) *RateLimitInfo {
	if h, ok := ctx.Value(rateLimitContextKey{}).(*rateLimitHolder); ok {
		return h.info
	}
	return nil
}

// RateLimitHeadersMiddleware writes X-RateLimit-* headers (and Retry-After on
// rejection) from whatever the handler recorded with SetRateLimits.
func RateLimitHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		holder := &rateLimitHolder{}
		wrapped := &rateLimitResponseWriter{ResponseWriter: w, holder: holder}
		next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), rateLimitContextKey{}, holder)))
	})
}

// rateLimitResponseWriter wraps ResponseWriter to write rate limit headers.
type rateLimitResponseWriter struct {
	http.ResponseWriter
	holder       *rateLimitHolder
	wroteHeaders bool
}

func (rw *rateLimitResponseWriter) WriteHeader(code int) {
	rw.writeRateLimitHeaders()
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *rateLimitResponseWriter) Write(b []byte) (int, error) {
	rw.writeRateLimitHeaders()
	return rw.ResponseWriter.Write(b)
}

func (rw *rateLimitResponseWriter) writeRateLimitHeaders() {
	if rw.wroteHeaders {
		return
	}
	rw.wroteHeaders = true

	rl := rw.holder.info
	if rl == nil || rl.Limit <= 0 {
		return
	}

	h := rw.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(rl.Remaining, 0)))
	if rl.Window > 0 {
		seconds := strconv.Itoa(int(rl.Window.Round(time.Second) / time.Second))
		h.Set("X-RateLimit-Reset", seconds)
		if rl.Rejected {
			h.Set("Retry-After", seconds)
		}
	}
}
