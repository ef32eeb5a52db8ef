package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/marketloop/storefront/internal/domain/user"
)

// userKey is the context key under which the authenticated user is stored.
type userKey struct{}

// UserFromContext extracts the authenticated user placed by RequireUser.
func UserFromContext(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(userKey{}).(user.User)
	return u, ok
}

// UserSource resolves users from hashed bearer tokens.
type UserSource interface {
	GetByTokenHash(ctx context.Context, tokenHash string) (*user.User, error)
}

// RequireUser authenticates the request from its Authorization bearer token.
// Tokens are opaque: only their SHA-256 hex digest is looked up, so a leaked
// database never yields usable credentials. The resolved user lands in the
// request context.
func RequireUser(users UserSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "authorization required"})
				return
			}

			hash := sha256.Sum256([]byte(token))
			u, err := users.GetByTokenHash(r.Context(), hex.EncodeToString(hash[:]))
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "invalid token"})
				return
			}

			ctx := context.WithValue(r.Context(), userKey{}, *u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates a route to administrators. It must be mounted inside
// RequireUser.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "authorization required"})
			return
		}
		if !u.IsAdmin {
			writeJSON(w, http.StatusForbidden, errorResponse{Message: "admin access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(auth[len(prefix):]), true
}
