// Package middleware holds the HTTP wrappers shared by the API routes.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// RequireKey guards the API with a single static key, compared in constant
// time against the X-API-Key header or an Authorization Bearer token. Paths
// listed in public stay reachable without a key so load-balancer health
// probes keep working. An empty key disables the guard entirely.
func RequireKey(apiKey string, public ...string) func(http.Handler) http.Handler {
	open := make(map[string]struct{}, len(public))
	for _, p := range public {
		open[p] = struct{}{}
	}
	key := []byte(apiKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(key) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := open[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			if subtle.ConstantTimeCompare([]byte(presentedKey(r)), key) != 1 {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"missing or invalid api key"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// presentedKey pulls the key the request carries: X-API-Key first, then an
// Authorization Bearer token.
func presentedKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		if scheme, token, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return ""
}
