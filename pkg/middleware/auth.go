// Package middleware provides HTTP middleware for the crewdeck server.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/tcmartin/crewdeck/pkg/client"
)

// Key type for context values
type contextKey string

// Context keys
const (
	TokenKey contextKey = "bearer_token"
)

// BearerToken picks up the caller's backend token from the Authorization
// header or the token query parameter (browsers cannot set headers on
// WebSocket or EventSource requests). Tokens that have already expired are
// rejected; tokens that are not JWTs are passed through for the backend to judge.
func BearerToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip CORS preflight
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		token := ""
		if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		} else if q := r.URL.Query().Get("token"); q != "" {
			token = q
		}

		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		if exp, err := client.TokenExpiry(token); err == nil && time.Now().After(exp) {
			writeError(w, http.StatusUnauthorized, "token expired")
			return
		}

		ctx := context.WithValue(r.Context(), TokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetToken retrieves the bearer token from the request context
func GetToken(r *http.Request) (string, bool) {
	token, ok := r.Context().Value(TokenKey).(string)
	return token, ok && token != ""
}
