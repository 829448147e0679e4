// Package middleware provides HTTP middleware for the filesystem API.
package middleware

import (
	"context"
	"net/http"

	"github.com/openrfs/rfsd/internal/authbridge"
	"github.com/openrfs/rfsd/internal/domain"
)

type contextKey string

const userContextKey contextKey = "user"

// UserFromContext retrieves the authenticated User from the request
// context. Returns nil if called outside a route guarded by Authenticate.
func UserFromContext(ctx context.Context) *domain.User {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	if !ok {
		return nil
	}
	return user
}

// Unauthorized is invoked by Authenticate when the session cookie is
// missing, malformed, expired, or names an unknown user.
type Unauthorized func(w http.ResponseWriter, r *http.Request)

// Authenticate verifies the connect.sid session cookie via bridge and
// stores the resolved User in the request context. On failure it calls
// onUnauthorized instead of invoking the next handler.
func Authenticate(bridge *authbridge.Bridge, onUnauthorized Unauthorized) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := bridge.Authenticate(r)
			if err != nil {
				onUnauthorized(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
