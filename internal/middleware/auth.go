package middleware

import (
	"net/http"
	"strings"

	"github.com/strandhq/billing/internal/domain"
	"github.com/strandhq/billing/internal/identity"
)

type contextKey string

// bearerPrefix is the Authorization scheme expected on API requests.
const bearerPrefix = "Bearer "

// WithPrincipal extracts the bearer token from the Authorization header and
// resolves it to a principal via the verifier. This middleware is optional:
// it attaches the principal when the token is valid but does not require
// authentication. Invalid tokens are treated the same as absent ones so
// probing requests cannot distinguish the two.
func WithPrincipal(verifier identity.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			token := strings.TrimPrefix(header, bearerPrefix)
			principal, err := verifier.Verify(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := domain.NewContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth ensures the request carries an authenticated principal,
// returning 401 if not.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !domain.IsAuthenticated(r.Context()) {
			respondUnauthorized(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireBillingAccess ensures the principal may mutate billing state,
// returning 403 if the role is insufficient and 401 if unauthenticated.
func RequireBillingAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !domain.IsAuthenticated(r.Context()) {
			respondUnauthorized(w, r)
			return
		}

		if !domain.CanManageBilling(r.Context()) {
			respondForbidden(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}
