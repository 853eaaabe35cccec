package middleware

import (
	"context"
	"net/http"
	"strings"
)

type ownerTokenContextKey struct{}

// OwnerTokenFromContext returns the bearer token stored by [RequireOwnerToken].
func OwnerTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(ownerTokenContextKey{}).(string)
	return token, ok && token != ""
}

// RequireOwnerToken rejects requests without an Authorization bearer token with 401
// and passes the token to next through the request context.
func RequireOwnerToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="fileshare"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ownerTokenContextKey{}, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
