package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/marketday/identity-service/internal/identity_service/domain"
	"github.com/marketday/identity-service/internal/identity_service/repository"
)

type contextKey string

const principalContextKey contextKey = "principal"

// PrincipalFromContext returns the authenticated principal placed by
// AuthMiddleware.
func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(domain.Principal)
	return p, ok
}

// AuthMiddleware verifies the Bearer session token against the identity
// provider and injects the resulting principal into the request context.
func AuthMiddleware(idp repository.IdentityProvider, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				respondWithError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			principal, err := idp.Principal(r.Context(), token)
			if err != nil {
				logger.WarnContext(r.Context(), "Session token verification failed", "error", err)
				respondWithError(w, http.StatusUnauthorized, "invalid session token")
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey, *principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
