package httpserver

import (
	"context"
	"log"
	"net/http"
	"strings"

	"realtime_go/internal/domain"
	"realtime_go/internal/security"
)

type contextKey string

const userContextKey contextKey = "currentUser"

// WithUser returns a new context carrying the authenticated user.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// CurrentUser extracts the authenticated user from the request context, if any.
func CurrentUser(r *http.Request) *domain.User {
	if u, ok := r.Context().Value(userContextKey).(*domain.User); ok {
		return u
	}
	return nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" || !strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[len("bearer "):])
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": msg})
}

// AuthMiddleware validates the Bearer token, resolves the subject to an
// active user, and attaches the user to the request context.
func AuthMiddleware(tokens *security.TokenService, users domain.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				unauthorized(w, "missing or invalid Authorization header")
				return
			}

			claims, err := tokens.Parse(tokenStr)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}
			sub, _ := claims["sub"].(string)
			if sub == "" {
				unauthorized(w, "invalid token subject")
				return
			}

			user, err := users.GetByUsername(r.Context(), sub)
			if err != nil {
				log.Printf("auth: resolve subject %q: %v", sub, err)
				unauthorized(w, "user not found")
				return
			}
			if !user.IsActive {
				unauthorized(w, "user not found")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
