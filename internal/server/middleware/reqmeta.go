package middleware

import (
	"context"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// CaptureRequestMeta records the request ID, client IP, and user agent in
// the context so the audit writer can stamp them onto appended entries.
// It must run after chi's RequestID and RealIP middleware.
func CaptureRequestMeta() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			meta := RequestMeta{
				RequestID: chimw.GetReqID(r.Context()),
				IPAddress: r.RemoteAddr,
				UserAgent: r.UserAgent(),
			}

			ctx := context.WithValue(r.Context(), ContextKeyReqMeta, meta)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
