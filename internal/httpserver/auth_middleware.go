package httpserver

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"travelmate/internal/domain"
)

type contextKey string

const userContextKey contextKey = "currentUserID"

// WithUserID returns a new context carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey, userID)
}

// CurrentUserID extracts the authenticated user ID from context, if any.
func CurrentUserID(r *http.Request) string {
	if v, ok := r.Context().Value(userContextKey).(string); ok {
		return v
	}
	return ""
}

// AuthMiddleware validates the Bearer token and attaches the user ID to the context.
func AuthMiddleware(auth domain.Authenticator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Code: domain.CodeUnauthorized, Error: "missing or invalid Authorization header"})
				return
			}
			tokenStr := strings.TrimSpace(authHeader[len("Bearer "):])

			userID, err := auth.Authenticate(r.Context(), tokenStr)
			if err != nil {
				log.Debug("rejected token", "path", r.URL.Path, "error", err)
				writeJSON(w, http.StatusUnauthorized, errorResponse{Code: domain.CodeUnauthorized, Error: "invalid token"})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// InternalTokenMiddleware guards hooks called by other platform services.
// With an empty token every request is refused.
func InternalTokenMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Internal-Token")
			if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusForbidden, errorResponse{Code: domain.CodeForbidden, Error: "forbidden"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
