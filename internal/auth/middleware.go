package auth

import (
	"context"
	"errors"
	"net/http"
)

type contextKey struct{}

var claimsContextKey = contextKey{}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok
}

// Middleware verifies the access token cookie. Rate limiting runs before this
// in the chain, so a throttled client never pays for signature verification.
//
// An expired token answers 401 with code "token_expired" and keeps the
// cookies, signalling the client to call the refresh endpoint. Any other
// failure clears both cookies and answers "token_invalid": the session is
// gone and the client must log in again.
func Middleware(tokens *TokenService, secureCookies bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(AccessCookieName)
			if err != nil || cookie.Value == "" {
				writeAuthError(w, "missing access token", "token_missing")
				return
			}

			claims, err := tokens.Verify(cookie.Value)
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					writeAuthError(w, "access token expired", "token_expired")
					return
				}
				ClearSessionCookies(w, secureCookies)
				writeAuthError(w, "invalid access token", "token_invalid")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a route on an exact role match. Unknown roles are
// rejected, never mapped to a privileged default.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeAuthError(w, "not authenticated", "token_missing")
				return
			}
			if claims.Role != role {
				writeError(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, message, code string) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"error": message,
		"code":  code,
	})
}
