package middleware

import (
	"context"
	"net/http"

	"github.com/autobit/compute/internal/api/response"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Auth requires the X-User-ID header on every request and stores its value in
// the request context. Identity is asserted, not verified: this service sits
// behind a gateway that authenticates users and forwards the header.
func Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			response.WriteError(w, http.StatusUnauthorized, "missing X-User-ID header")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the authenticated user id stored by Auth.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// WithUserID injects a user id directly, bypassing the header check. Handler
// tests use it to simulate an authenticated request.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}
