package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/username/hartafolio/backend/src/logger"
	"github.com/username/hartafolio/backend/src/security"
	"github.com/username/hartafolio/backend/src/utils"
)

type contextKey string

const (
	identityContextKey = contextKey("callerIdentity")
	userIDContextKey   = contextKey("userID")
)

// IdentityMiddleware resolves the caller identity on every request and, when
// the bearer token carries a numeric subject, the user id as well. Requests
// without a valid token still pass through: the identity degrades to an
// address composite and only endpoints wrapped in RequireUser reject them.
func IdentityMiddleware(ids *security.IdentityService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), identityContextKey, ids.CallerIdentity(r))

			if sub, err := ids.SubjectFromRequest(r); err == nil {
				if userID, err := strconv.ParseInt(sub, 10, 64); err == nil {
					ctx = context.WithValue(ctx, userIDContextKey, userID)
				} else {
					logger.L.Debug("Token subject is not a numeric user id", "sub", sub)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser guards endpoints that operate on a stored portfolio.
func RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUserIDFromContext(r.Context()); !ok {
			utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// GetCallerIdentity returns the rate-limiting identity set by
// IdentityMiddleware, or an empty string outside it.
func GetCallerIdentity(ctx context.Context) string {
	identity, _ := ctx.Value(identityContextKey).(string)
	return identity
}

// GetUserIDFromContext returns the authenticated user id, if any.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	return userID, ok
}
