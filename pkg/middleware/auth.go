package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/A8-Moke/SignalR/internal/platform/authn"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// AuthMiddleware extracts a bearer token, validates it against tokenSvc,
// and injects the resulting user id into the request context. It gates
// the demo server's /ws endpoint; the hub itself never authenticates
// connections.
func AuthMiddleware(tokenSvc *authn.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization format", http.StatusUnauthorized)
				return
			}
			userID, err := tokenSvc.ValidateToken(parts[1])
			if err != nil {
				http.Error(w, "unauthorized: "+err.Error(), http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
