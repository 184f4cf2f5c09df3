// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/eyetask/driverhub/internal/models"
	"github.com/eyetask/driverhub/internal/service"
)

type ctxKey string

const (
	userKey ctxKey = "user"
	roleKey ctxKey = "role"
)

// TokenParser verifies bearer tokens and returns their claims.
type TokenParser interface {
	ParseToken(token string) (*service.Claims, error)
}

// BearerAuth enforces bearer-token authentication.
//
// It reads the Authorization header, verifies the token, and stores the
// authenticated user ID and role in the request context for downstream
// handlers. Requests without a valid token get 401. Public paths are
// matched by prefix and pass through untouched.
func BearerAuth(parser TokenParser, publicPaths ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range publicPaths {
				if strings.HasPrefix(r.URL.Path, p) {
					next.ServeHTTP(w, r)
					return
				}
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := parser.ParseToken(token)
			if err != nil {
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			ctx := WithUser(r.Context(), claims.Subject, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithUser returns a context carrying the authenticated user and role,
// exactly as BearerAuth stores them.
func WithUser(ctx context.Context, userID string, role models.Role) context.Context {
	ctx = context.WithValue(ctx, userKey, userID)
	return context.WithValue(ctx, roleKey, role)
}

// GetUserIDFromContext extracts the authenticated user ID from the
// request context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	val := ctx.Value(userKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

// GetRoleFromContext extracts the authenticated user's role from the
// request context. Returns an empty role if not found.
func GetRoleFromContext(ctx context.Context) models.Role {
	val := ctx.Value(roleKey)
	if r, ok := val.(models.Role); ok {
		return r
	}
	return ""
}
