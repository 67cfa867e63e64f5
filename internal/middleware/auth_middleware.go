package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Buildathonzx/whisperrnote/pkg/jwt"
	"github.com/Buildathonzx/whisperrnote/pkg/response"
)

type contextKey string

const IdentityKey contextKey = "identity"

// AuthMiddleware resolves the caller identity from a bearer token. Every
// protected route runs behind it; handlers read the identity with
// CallerIdentity and never trust identity fields in request bodies.
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}

			claims, err := jwt.ValidateToken(parts[1], jwtSecret)
			if err != nil {
				response.Unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerIdentity returns the authenticated identity, or "" when the request
// never passed AuthMiddleware.
func CallerIdentity(r *http.Request) string {
	identity, ok := r.Context().Value(IdentityKey).(string)
	if !ok {
		return ""
	}
	return identity
}
