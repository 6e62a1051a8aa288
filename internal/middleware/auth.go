// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mealbridge/mealbridge/internal/auth"
	"github.com/mealbridge/mealbridge/internal/errors"
	"github.com/mealbridge/mealbridge/internal/httputil"
	"github.com/mealbridge/mealbridge/internal/logging"
)

// AuthMiddleware resolves bearer tokens to an account identity in the
// request context.
type AuthMiddleware struct {
	tokens    *auth.TokenManager
	logger    *logging.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates an authentication middleware. Requests to
// skipPaths pass through without a token; when one is present it is still
// resolved, since some public paths also serve authenticated methods.
func NewAuthMiddleware(tokens *auth.TokenManager, logger *logging.Logger, skipPaths []string) *AuthMiddleware {
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}
	if logger == nil {
		logger = logging.NewDefault("auth")
	}
	return &AuthMiddleware{tokens: tokens, logger: logger, skipPaths: skip}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.resolve(r)
		if err != nil {
			if m.skipPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			m.respondError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolve verifies the bearer token on r and returns a context carrying the
// account identity.
func (m *AuthMiddleware) resolve(r *http.Request) (context.Context, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errors.Unauthorized("missing Authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, errors.Unauthorized("invalid Authorization header format")
	}

	claims, err := m.tokens.Verify(parts[1])
	if err != nil {
		return nil, err
	}

	ctx := logging.WithUserID(r.Context(), claims.UserID)
	if claims.Role != "" {
		ctx = logging.WithRole(ctx, claims.Role)
	}
	return ctx, nil
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	m.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
	}).Warn("authentication failed")
	httputil.WriteServiceError(w, err)
}

// GetUserID extracts the authenticated account id from the context.
func GetUserID(ctx context.Context) string {
	return logging.GetUserID(ctx)
}

// GetUserRole extracts the authenticated account role from the context.
func GetUserRole(ctx context.Context) string {
	return logging.GetRole(ctx)
}

// RequireUserID rejects requests that reached a protected handler without an
// authenticated identity.
func RequireUserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if logging.GetUserID(r.Context()) == "" {
			httputil.Unauthorized(w, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}
