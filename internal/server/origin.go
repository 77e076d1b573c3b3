package server

import (
	"net/http"
	"strings"

	"github.com/tjfontaine/persona-chat-gateway/internal/domain"
)

// OriginMiddleware rejects browser requests from origins outside the allow
// list. Requests without an Origin header (curl, server-to-server) pass; the
// CORS handler only decorates responses and never blocks on its own.
// An entry of "*" allows everything.
func OriginMiddleware(allowed []string) func(http.Handler) http.Handler {
	set := make(map[string]bool, len(allowed))
	wildcard := false
	for _, o := range allowed {
		o = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(o)), "/")
		if o == "*" {
			wildcard = true
		}
		set[o] = true
	}

	return func(next http.Handler) http.Handler {
		if wildcard {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || set[strings.TrimSuffix(strings.ToLower(origin), "/")] {
				next.ServeHTTP(w, r)
				return
			}
			err := domain.ErrPermission("origin not allowed").WithCode(domain.ErrorCodeOriginNotAllowed)
			AddError(r.Context(), err)
			AddLogField(r.Context(), "origin", origin)
			WriteError(w, err)
		})
	}
}
