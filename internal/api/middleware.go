/**
 * @description
 * Custom middleware for the HTTP router. Identity management is out of scope
 * for the ledger (account ids are opaque caller-supplied strings), so the API
 * trusts its callers and gates the admin surface behind a shared internal key.
 */

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// internalKeyHeader carries the shared key for admin endpoints.
const internalKeyHeader = "X-Internal-API-Key"

// InternalKeyMiddleware rejects requests whose internal key header does not
// match the configured key. An empty configured key disables the admin
// surface entirely.
func InternalKeyMiddleware(key string) func(http.Handler) http.Handler {
	expected := strings.TrimSpace(key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected == "" {
				http.Error(w, "admin API disabled", http.StatusForbidden)
				return
			}
			provided := strings.TrimSpace(r.Header.Get(internalKeyHeader))
			if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
				http.Error(w, "invalid internal API key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
