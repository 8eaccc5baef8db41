package httpapi

import (
	"net/http"
	"strings"
)

// AuthMiddleware validates the shared API token before passing the request
// on. The token comes from the Authorization header (raw or Bearer-prefixed)
// or, for websocket clients that cannot set headers, the token query
// parameter.
func AuthMiddleware(validToken string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		token = strings.TrimPrefix(token, "Bearer ")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if token == "" {
			http.Error(w, "missing authorization token", http.StatusUnauthorized)
			return
		}
		if token != validToken {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
