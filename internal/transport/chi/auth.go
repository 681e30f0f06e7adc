package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// exemptPaths bypass authentication so health checks and scrapers need no key.
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// BearerAuthMiddleware returns a middleware that validates Bearer tokens.
// If apiKeys is empty, authentication is disabled.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	validKeys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			validKeys = append(validKeys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(validKeys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized,
					ErrorCodeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			if !knownKey(validKeys, []byte(auth[len(bearerPrefix):])) {
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func knownKey(keys [][]byte, token []byte) bool {
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, token)
	}
	return found == 1
}
