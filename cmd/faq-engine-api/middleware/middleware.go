// Package middleware provides HTTP middleware for the FAQ engine API.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/observability"
)

// Context keys for request-scoped values.
type contextKey string

const (
	// UserIDKey is the context key for the calling user.
	UserIDKey contextKey = "user_id"
	// UserHeader carries the caller's user id.
	UserHeader = "X-User-ID"
	// AnonymousUser is used when no user header is sent.
	AnonymousUser = "anonymous"
)

// User puts the caller's user id into the request context. Identity is
// trusted from the header; the API sits behind the app gateway.
func User() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(UserHeader))
			if userID == "" {
				userID = AnonymousUser
			}
			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext extracts the user id from context.
func UserFromContext(ctx context.Context) string {
	if v := ctx.Value(UserIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// CORS returns CORS middleware for browser clients.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}

			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Connect-Protocol-Version, X-User-ID, X-Request-ID")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request and carries chi's request id into
// the logger context.
func RequestLogger(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()
			if id := chimiddleware.GetReqID(ctx); id != "" {
				ctx = observability.ContextWithRequestID(ctx, id)
				r = r.WithContext(ctx)
			}

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			event := logger.WithContext(ctx).Info()
			if status >= http.StatusInternalServerError {
				event = logger.WithContext(ctx).Error()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Str("user_id", UserFromContext(r.Context())).
				Dur("latency", time.Since(start)).
				Msg("HTTP request")
		})
	}
}
