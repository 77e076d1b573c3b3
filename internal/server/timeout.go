package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds the whole request. The context is cancelled when
// the timeout passes; handlers observe ctx.Done() cooperatively. A zero
// timeout disables the middleware.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
