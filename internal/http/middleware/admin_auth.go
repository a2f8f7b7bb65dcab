package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wolfman30/lead-crm/internal/auth"
)

type contextKey string

const adminIdentityKey contextKey = "adminIdentity"

// AdminAuth rejects requests without a valid admin bearer token and stores
// the verified identity on the request context.
func AdminAuth(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				writeError(w, http.StatusUnauthorized, "admin auth disabled")
				return
			}
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			identity, err := verifier.Verify(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), adminIdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminIdentityFromContext returns the verified admin identity if present.
func AdminIdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(adminIdentityKey).(auth.Identity)
	return id, ok
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
